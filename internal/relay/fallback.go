package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pagebot-ai/pagebot/internal/knowledge"
	"github.com/pagebot-ai/pagebot/internal/providers"
)

// Fallback resolves a reply from the generative endpoint when the
// knowledge store has no match. It always produces a user-facing string:
// upstream failures degrade to a fixed apology, never to an error.
type Fallback struct {
	Provider  providers.Provider
	Knowledge *knowledge.Store

	ApologyUnavailable string
	ApologyMalformed   string
}

// Respond builds the contextual prompt and asks the provider once. The
// call is never retried; any failure yields the matching apology copy.
func (f *Fallback) Respond(ctx context.Context, message, senderID string) string {
	prompt := buildPrompt(f.Knowledge.ContextText(), message)

	text, err := f.Provider.Generate(ctx, prompt, senderID)
	if err == nil {
		return text
	}

	var ue *providers.UpstreamError
	if errors.As(err, &ue) && ue.Kind == providers.KindMalformed {
		slog.Warn("fallback.malformed_response", "provider", f.Provider.Name(), "error", err)
		return f.ApologyMalformed
	}
	slog.Warn("fallback.upstream_unavailable", "provider", f.Provider.Name(), "error", err)
	return f.ApologyUnavailable
}

// buildPrompt wraps the user message with the curated knowledge context
// when there is any; with an empty store the raw message goes through.
func buildPrompt(contextText, message string) string {
	if contextText == "" {
		return message
	}
	return fmt.Sprintf(
		"Answer the user's message using the following reference material where relevant.\n\n"+
			"Reference material:\n%s\n\nUser message: %s",
		contextText, message)
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiProvider calls the Gemini generateContent endpoint.
type GeminiProvider struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewGeminiProvider creates a Gemini client. apiBase defaults to the public
// endpoint; timeout is the per-call ceiling.
func NewGeminiProvider(apiKey, apiBase, model string, timeout time.Duration) *GeminiProvider {
	if apiBase == "" {
		apiBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate issues a single generateContent call. It is never retried.
func (p *GeminiProvider) Generate(ctx context.Context, prompt, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("key", p.apiKey)
	if userID != "" {
		q.Set("user", userID)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?%s", p.apiBase, p.model, q.Encode())

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", &UpstreamError{Kind: KindUnavailable, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &UpstreamError{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UpstreamError{
			Kind: KindUnavailable,
			Err:  fmt.Errorf("gemini status %s: %s", resp.Status, snippet),
		}
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &UpstreamError{Kind: KindMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &UpstreamError{Kind: KindMalformed, Err: errors.New("response has no candidates")}
	}

	text := out.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &UpstreamError{Kind: KindMalformed, Err: errors.New("response text is empty")}
	}
	return text, nil
}

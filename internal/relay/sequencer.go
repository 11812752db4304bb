package relay

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pagebot-ai/pagebot/internal/bus"
)

// DefaultPacing is the fixed delay between successive reply parts to one
// recipient. Rate pacing to the platform, not error backoff.
const DefaultPacing = 500 * time.Millisecond

// imageURLPattern classifies a reply part as an image attachment.
var imageURLPattern = regexp.MustCompile(`(?i)^https?://.*\.(?:png|jpg|jpeg|gif)$`)

// Sender delivers single classified parts to one messaging platform.
type Sender interface {
	Name() string

	// Ready reports whether the sender is able to deliver at all (e.g.
	// its access credential is configured). A non-nil error aborts a
	// delivery before the first part.
	Ready() error

	SendText(ctx context.Context, recipientID, text string) error
	SendImage(ctx context.Context, recipientID, url string) error
}

// ClassifyPart maps one reply part to a delivery unit for recipientID.
func ClassifyPart(recipientID, part string) bus.DeliveryUnit {
	trimmed := strings.TrimSpace(part)
	if imageURLPattern.MatchString(trimmed) {
		return bus.DeliveryUnit{RecipientID: recipientID, Kind: bus.PartImage, Payload: trimmed}
	}
	return bus.DeliveryUnit{RecipientID: recipientID, Kind: bus.PartText, Payload: part}
}

// Sequencer sends reply parts strictly in order with a fixed inter-part
// pacing delay. Part failures are isolated: a failed send is logged and the
// remaining parts are still attempted after the usual delay.
type Sequencer struct {
	Pacing time.Duration
}

// NewSequencer creates a sequencer; pacing <= 0 uses DefaultPacing.
func NewSequencer(pacing time.Duration) *Sequencer {
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	return &Sequencer{Pacing: pacing}
}

// Deliver sends every part of plan to recipientID via sender. Each part is
// fully sent, and its pacing delay elapsed, before the next begins — this
// is what preserves message order as the recipient sees it. If the sender
// is not ready the whole delivery is aborted up front with no calls made.
func (q *Sequencer) Deliver(ctx context.Context, sender Sender, recipientID string, plan []string) {
	if len(plan) == 0 {
		return
	}
	if err := sender.Ready(); err != nil {
		slog.Error("delivery.aborted", "channel", sender.Name(), "recipient", recipientID, "error", err)
		return
	}

	for i, part := range plan {
		unit := ClassifyPart(recipientID, part)

		var err error
		switch unit.Kind {
		case bus.PartImage:
			err = sender.SendImage(ctx, recipientID, unit.Payload)
		default:
			err = sender.SendText(ctx, recipientID, unit.Payload)
		}
		if err != nil {
			slog.Error("delivery.part_failed",
				"channel", sender.Name(), "recipient", recipientID,
				"part", i+1, "of", len(plan), "error", err)
		} else {
			slog.Debug("delivery.part_sent",
				"channel", sender.Name(), "recipient", recipientID,
				"part", i+1, "of", len(plan), "kind", unit.Kind)
		}

		if i < len(plan)-1 {
			if !q.pace(ctx) {
				slog.Warn("delivery.cancelled", "channel", sender.Name(), "recipient", recipientID, "sent", i+1)
				return
			}
		}
	}
}

// pace sleeps for the pacing delay, honoring ctx cancellation. Returns
// false when the context ended first.
func (q *Sequencer) pace(ctx context.Context) bool {
	t := time.NewTimer(q.Pacing)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package relay

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagebot-ai/pagebot/internal/bus"
	"github.com/pagebot-ai/pagebot/internal/knowledge"
)

// Engine orchestrates one inbound event through the full pipeline:
// knowledge match, fallback generation, reply composition and paced
// delivery.
type Engine struct {
	Knowledge *knowledge.Store
	Fallback  *Fallback
	Sequencer *Sequencer

	tracer trace.Tracer
}

// NewEngine wires the pipeline components.
func NewEngine(ks *knowledge.Store, fb *Fallback, seq *Sequencer) *Engine {
	return &Engine{
		Knowledge: ks,
		Fallback:  fb,
		Sequencer: seq,
		tracer:    otel.Tracer("pagebot/relay"),
	}
}

// Process runs the pipeline for one event and delivers the reply via
// sender. It never returns an error: every failure mode inside the
// pipeline is contained (logged, degraded to an apology, or isolated per
// part), so one event's fault cannot affect its siblings.
func (e *Engine) Process(ctx context.Context, ev bus.InboundEvent, sender Sender) {
	ctx, span := e.tracer.Start(ctx, "relay.process", trace.WithAttributes(
		attribute.String("channel", ev.Channel),
		attribute.String("request_id", ev.RequestID),
	))
	defer span.End()

	log := slog.With("channel", ev.Channel, "request_id", ev.RequestID, "sender", ev.SenderID)
	log.Info("relay.event", "text_len", len(ev.Text))

	reply, matched := e.Knowledge.FindAnswer(ev.Text)
	span.SetAttributes(attribute.Bool("knowledge.matched", matched))
	if !matched {
		fbCtx, fbSpan := e.tracer.Start(ctx, "relay.fallback")
		reply = e.Fallback.Respond(fbCtx, ev.Text, ev.SenderID)
		fbSpan.End()
	}

	plan := SplitReply(reply)
	span.SetAttributes(attribute.Int("reply.parts", len(plan)))
	if len(plan) == 0 {
		log.Warn("relay.empty_reply")
		return
	}

	dCtx, dSpan := e.tracer.Start(ctx, "relay.deliver")
	e.Sequencer.Deliver(dCtx, sender, ev.SenderID, plan)
	dSpan.End()
}

// ProcessDetached runs Process in a goroutine with its own containment
// boundary, for fan-out from webhook handlers that must not wait on (or be
// broken by) downstream work.
func (e *Engine) ProcessDetached(ctx context.Context, ev bus.InboundEvent, sender Sender) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("relay.panic", "channel", ev.Channel, "request_id", ev.RequestID, "panic", r)
			}
		}()
		e.Process(ctx, ev, sender)
	}()
}

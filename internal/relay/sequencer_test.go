package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pagebot-ai/pagebot/internal/bus"
)

// recordingSender captures send calls with their timestamps.
type recordingSender struct {
	mu       sync.Mutex
	calls    []sentCall
	readyErr error
	failOn   map[int]bool // 1-based call index → return error
}

type sentCall struct {
	kind    bus.PartKind
	to      string
	payload string
	at      time.Time
}

func (s *recordingSender) Name() string { return "fake" }

func (s *recordingSender) Ready() error { return s.readyErr }

func (s *recordingSender) record(kind bus.PartKind, to, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sentCall{kind: kind, to: to, payload: payload, at: time.Now()})
	if s.failOn[len(s.calls)] {
		return errors.New("send failed")
	}
	return nil
}

func (s *recordingSender) SendText(ctx context.Context, to, text string) error {
	return s.record(bus.PartText, to, text)
}

func (s *recordingSender) SendImage(ctx context.Context, to, url string) error {
	return s.record(bus.PartImage, to, url)
}

func (s *recordingSender) snapshot() []sentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCall(nil), s.calls...)
}

func TestClassifyPart(t *testing.T) {
	tests := []struct {
		name string
		part string
		want bus.PartKind
	}{
		{"plain text", "hello there", bus.PartText},
		{"png url", "https://example.com/a.png", bus.PartImage},
		{"jpeg uppercase", "HTTPS://EXAMPLE.COM/PHOTO.JPEG", bus.PartImage},
		{"gif with padding", "  http://cdn.example.com/x.gif  ", bus.PartImage},
		{"url with trailing words", "https://example.com/a.png is nice", bus.PartText},
		{"non-image url", "https://example.com/page.html", bus.PartText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPart("U1", tt.part)
			if got.Kind != tt.want {
				t.Errorf("ClassifyPart(%q).Kind = %v, want %v", tt.part, got.Kind, tt.want)
			}
		})
	}
}

func TestDeliverSequentialWithPacing(t *testing.T) {
	s := &recordingSender{}
	q := NewSequencer(30 * time.Millisecond)

	q.Deliver(context.Background(), s, "U1", []string{"one", "two", "three"})

	calls := s.snapshot()
	if len(calls) != 3 {
		t.Fatalf("got %d sends, want 3", len(calls))
	}
	for i, want := range []string{"one", "two", "three"} {
		if calls[i].payload != want || calls[i].to != "U1" {
			t.Errorf("call %d = %+v, want %q to U1", i, calls[i], want)
		}
	}
	// The second send must not start before the first's pacing delay.
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].at.Sub(calls[i-1].at); gap < 25*time.Millisecond {
			t.Errorf("gap between part %d and %d = %v, want >= pacing", i, i+1, gap)
		}
	}
}

func TestDeliverPartFailureIsIsolated(t *testing.T) {
	s := &recordingSender{failOn: map[int]bool{1: true}}
	q := NewSequencer(time.Millisecond)

	q.Deliver(context.Background(), s, "U1", []string{"a", "b", "c"})

	if got := len(s.snapshot()); got != 3 {
		t.Errorf("sends after first failure = %d, want all 3 attempted", got)
	}
}

func TestDeliverAbortsWhenNotReady(t *testing.T) {
	s := &recordingSender{readyErr: errors.New("access token not configured")}
	q := NewSequencer(time.Millisecond)

	q.Deliver(context.Background(), s, "U1", []string{"a", "b"})

	if got := len(s.snapshot()); got != 0 {
		t.Errorf("sends with unready sender = %d, want 0", got)
	}
}

func TestDeliverEmptyPlanIsNoop(t *testing.T) {
	s := &recordingSender{}
	NewSequencer(time.Millisecond).Deliver(context.Background(), s, "U1", nil)
	if len(s.snapshot()) != 0 {
		t.Error("empty plan produced sends")
	}
}

func TestDeliverImageClassification(t *testing.T) {
	s := &recordingSender{}
	q := NewSequencer(time.Millisecond)

	q.Deliver(context.Background(), s, "U1", []string{"look:", "https://example.com/cat.png"})

	calls := s.snapshot()
	if len(calls) != 2 {
		t.Fatalf("got %d sends, want 2", len(calls))
	}
	if calls[0].kind != bus.PartText || calls[1].kind != bus.PartImage {
		t.Errorf("kinds = %v, %v; want text then image", calls[0].kind, calls[1].kind)
	}
}

func TestDeliverStopsOnContextCancel(t *testing.T) {
	s := &recordingSender{}
	q := NewSequencer(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	q.Deliver(ctx, s, "U1", []string{"a", "b", "c"})

	if got := len(s.snapshot()); got >= 3 {
		t.Errorf("sends after cancel = %d, want fewer than 3", got)
	}
}

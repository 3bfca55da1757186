package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collegebot/internal/models"
)

// Sink delivers one message to one subscriber on a single platform.
// rich marks HTML-formatted payloads.
type Sink interface {
	Send(ctx context.Context, sub models.Subscriber, text string, rich bool) error
}

// Router fans a message out to subscribers, dispatching each one to the sink
// registered for its platform.
type Router struct {
	sinks  map[string]Sink
	delay  time.Duration
	logger *zap.Logger
}

// NewRouter builds a Router with the given inter-send delay.
func NewRouter(delay time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{sinks: make(map[string]Sink), delay: delay, logger: logger}
}

// Register attaches a sink for a platform code. Later registrations for the
// same platform replace earlier ones.
func (r *Router) Register(platform string, sink Sink) {
	r.sinks[platform] = sink
}

// Broadcast sends text to every subscriber in order, throttled by the
// configured delay. A failed or unroutable recipient is counted and skipped,
// the remaining recipients still receive the message. Returns the number of
// successful and failed deliveries.
func (r *Router) Broadcast(ctx context.Context, subs []models.Subscriber, text string, rich bool) (sent, failed int) {
	for i, sub := range subs {
		if i > 0 && r.delay > 0 {
			select {
			case <-ctx.Done():
				failed += len(subs) - i
				return sent, failed
			case <-time.After(r.delay):
			}
		}

		sink, ok := r.sinks[sub.Platform]
		if !ok {
			r.logger.Sugar().Warnw("no sink for platform",
				"platform", sub.Platform, "chat_id", sub.ChatID)
			failed++
			continue
		}
		if err := sink.Send(ctx, sub, text, rich); err != nil {
			r.logger.Sugar().Warnw("notification delivery failed",
				"platform", sub.Platform, "chat_id", sub.ChatID, "thread_id", sub.ThreadID, "error", err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

// Package notify alerts operators about markets and settlements that need
// attention. Notifications fan out to every configured sender (Discord,
// Telegram) and can be filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Event types operators can subscribe to.
const (
	EventNeedsReview       = "needs_review"
	EventNeedsManualReview = "needs_manual_review"
	EventMarketCreated     = "market_created"
	EventMarketSettled     = "market_settled"
	EventError             = "error"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches notifications to its senders. Notify forwards only
// allowed event types and drops repeats of the same key within the dedup
// window; NotifyAll bypasses both. A nil *Notifier discards everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	dedup   *Dedup
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
// dedupTTL <= 0 disables deduplication.
func NewNotifier(senders []Sender, events []string, dedupTTL time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	n := &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
	if dedupTTL > 0 {
		n.dedup = NewDedup(dedupTTL)
	}
	return n
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends an event notification. key identifies the subject (a proposal
// or market ID) for deduplication; an empty key is never deduplicated.
func (n *Notifier) Notify(ctx context.Context, event, key, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	if key != "" && n.dedup != nil && n.dedup.IsDuplicate(event+":"+key) {
		n.logger.DebugContext(ctx, "duplicate notification dropped",
			slog.String("event", event),
			slog.String("key", key),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends to every sender regardless of event filters.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// RunCleanup prunes the dedup window every interval until ctx is done.
func (n *Notifier) RunCleanup(ctx context.Context, interval time.Duration) error {
	if n == nil || n.dedup == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.dedup.Cleanup()
		}
	}
}

// dispatch delivers to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

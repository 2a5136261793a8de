package notify

import (
	"context"
	"log/slog"

	"github.com/vidforge/vidforge/internal/intake"
)

// Notifier is told when an intake session reaches a terminal phase.
type Notifier interface {
	IntakeFinished(ctx context.Context, userID string, s intake.Session) error
}

var _ Notifier = (*Multi)(nil)

// Multi fans out to all registered notifiers. A failing notifier is logged
// and does not stop the others.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) IntakeFinished(ctx context.Context, userID string, s intake.Session) error {
	for _, n := range m.notifiers {
		if err := n.IntakeFinished(ctx, userID, s); err != nil {
			slog.Error("multi-notifier: intake notification failed", "session_id", s.ID, "error", err)
		}
	}
	return nil
}

// Log writes one line per finished session.
type Log struct{}

func (Log) IntakeFinished(ctx context.Context, userID string, s intake.Session) error {
	if s.Phase == intake.PhaseFailed {
		slog.WarnContext(ctx, "intake: session failed", "session_id", s.ID, "user_id", userID, "reason", s.FailureMessage)
		return nil
	}
	slog.InfoContext(ctx, "intake: session complete", "session_id", s.ID, "user_id", userID, "result_url", s.ResultURL)
	return nil
}

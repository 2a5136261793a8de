package notify

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vidforge/vidforge/internal/intake"
	"github.com/vidforge/vidforge/internal/webhook"
)

const (
	EventIntakeCompleted = "intake.completed"
	EventIntakeFailed    = "intake.failed"
)

// Dispatcher is satisfied by *webhook.Client.
type Dispatcher interface {
	Dispatch(ctx context.Context, event webhook.Event) error
}

// Webhook posts finished sessions as signed webhook events.
type Webhook struct {
	dispatcher Dispatcher
	clock      clockwork.Clock
}

func NewWebhook(d Dispatcher, clock clockwork.Clock) *Webhook {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Webhook{dispatcher: d, clock: clock}
}

func (w *Webhook) IntakeFinished(ctx context.Context, userID string, s intake.Session) error {
	name := EventIntakeCompleted
	data := map[string]any{
		"sessionId": s.ID,
		"userId":    userID,
	}
	if s.File != nil {
		data["fileName"] = s.File.Name
		data["fileSize"] = s.File.Size
	}
	if s.Phase == intake.PhaseFailed {
		name = EventIntakeFailed
		data["reason"] = s.FailureMessage
	} else {
		data["resultUrl"] = s.ResultURL
	}

	return w.dispatcher.Dispatch(ctx, webhook.Event{
		Name:      name,
		Timestamp: w.clock.Now().UTC().Truncate(time.Second),
		Data:      data,
	})
}

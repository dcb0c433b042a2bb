package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderNotify carries a workflow transition to the next reviewer's
	// notification channel.
	TaskOrderNotify = "order:notify"
)

// OrderNotifyPayload describes a committed order transition.
type OrderNotifyPayload struct {
	OrderID    string `json:"order_id"`
	ActorID    int64  `json:"actor_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	NextRole   string `json:"next_role,omitempty"`
}

// NewOrderNotifyTask constructs an Asynq task for a transition event.
func NewOrderNotifyTask(payload OrderNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderNotify, data), nil
}

// NewOrderNotifyHandler returns the worker-side handler. Delivery to the
// actual channel (mail, push) is an external collaborator; the worker's
// contract ends at a structured delivery record.
func NewOrderNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OrderNotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("order notification",
			slog.String("order_id", payload.OrderID),
			slog.String("from", payload.FromStatus),
			slog.String("to", payload.ToStatus),
			slog.String("next_role", payload.NextRole),
		)
		return nil
	}
}

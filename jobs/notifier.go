package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/barmanlink/barmanlink/internal/observability"
	"github.com/barmanlink/barmanlink/internal/orders"
)

// Notifier enqueues order transition notifications. Enqueue failures are
// logged and swallowed; a notification must never fail a transition.
type Notifier struct {
	client  *asynq.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNotifier constructs a Notifier from Redis options. Metrics may be nil.
func NewNotifier(redisOpts asynq.RedisClientOpt, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: asynq.NewClient(redisOpts), logger: logger, metrics: metrics}
}

// OrderMoved implements orders.Notifier.
func (n *Notifier) OrderMoved(ctx context.Context, evt orders.TransitionEvent) {
	n.metrics.ObserveTransition(string(evt.FromStatus), string(evt.ToStatus))
	task, err := NewOrderNotifyTask(OrderNotifyPayload{
		OrderID:    evt.OrderID.String(),
		ActorID:    evt.ActorID,
		FromStatus: string(evt.FromStatus),
		ToStatus:   string(evt.ToStatus),
		NextRole:   string(evt.NextRole),
	})
	if err != nil {
		n.logger.Error("build notify task", slog.Any("error", err))
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		n.logger.Error("enqueue notify task",
			slog.String("order_id", evt.OrderID.String()),
			slog.Any("error", err),
		)
	}
}

// Close releases client resources.
func (n *Notifier) Close() error {
	return n.client.Close()
}

package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestOrderNotifyTaskRoundTrip(t *testing.T) {
	task, err := NewOrderNotifyTask(OrderNotifyPayload{
		OrderID:    "2f0c9a43-9c18-4d46-96f2-6a3166a0bb0e",
		ActorID:    20,
		FromStatus: "pending",
		ToStatus:   "approved_pm",
		NextRole:   "barman_staff",
	})
	require.NoError(t, err)
	require.Equal(t, TaskOrderNotify, task.Type())

	handler := NewOrderNotifyHandler(nil)
	require.NoError(t, handler(context.Background(), task))
}

func TestOrderNotifyHandlerSkipsBadPayload(t *testing.T) {
	handler := NewOrderNotifyHandler(nil)
	err := handler(context.Background(), asynq.NewTask(TaskOrderNotify, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

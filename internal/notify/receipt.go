package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/obs"
)

// TaskOrderReceipt is the asynq task type carrying an order snapshot to email.
const TaskOrderReceipt = "email:order_receipt"

// Enqueuer is the subset of *asynq.Client used by ReceiptEnqueuer.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReceiptEnqueuer schedules a receipt email for every created order.
type ReceiptEnqueuer struct {
	Client    Enqueuer
	Queue     string
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

// Notify implements events.Notifier. Other topics are ignored.
func (e ReceiptEnqueuer) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicOrderCreated {
		return nil
	}
	if e.Client == nil {
		return errors.New("receipt enqueuer: client not configured")
	}
	opts := []asynq.Option{
		asynq.TaskID("receipt:" + ev.AggregateID),
		asynq.MaxRetry(e.maxRetry()),
	}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.Timeout > 0 {
		opts = append(opts, asynq.Timeout(e.Timeout))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	_, err := e.Client.EnqueueContext(ctx, asynq.NewTask(TaskOrderReceipt, ev.Payload), opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		obs.ObserveReceiptTask("enqueue", "duplicate")
		return nil
	case err != nil:
		obs.ObserveReceiptTask("enqueue", "error")
		return fmt.Errorf("enqueue receipt %s: %w", ev.AggregateID, err)
	}
	obs.ObserveReceiptTask("enqueue", "ok")
	return nil
}

func (e ReceiptEnqueuer) maxRetry() int {
	if e.MaxRetry <= 0 {
		return 5
	}
	return e.MaxRetry
}

package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Dispatcher submits mail jobs to the queue. Delivery is fire and
// forget: enqueue errors are returned for the caller to log, never to
// fail the primary operation.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(redisOpts asynq.RedisClientOpt) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(redisOpts)}
}

// SendWelcomeEmail enqueues a welcome email task.
func (d *Dispatcher) SendWelcomeEmail(ctx context.Context, to, firstName, role string) error {
	task, err := NewWelcomeEmailTask(WelcomeEmailPayload{To: to, FirstName: firstName, Role: role})
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// SendOTPEmail enqueues an OTP email task.
func (d *Dispatcher) SendOTPEmail(ctx context.Context, to, code string) error {
	task, err := NewOTPEmailTask(OTPEmailPayload{To: to, Code: code})
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

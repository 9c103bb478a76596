package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for post-registration mail.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypeOTPEmail is the task type for one-time-code delivery.
	TaskTypeOTPEmail = "mail:otp"
)

// WelcomeEmailPayload describes a registration notification. It never
// carries the account secret.
type WelcomeEmailPayload struct {
	To        string `json:"to"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
}

// OTPEmailPayload describes a one-time-code delivery.
type OTPEmailPayload struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

// NewWelcomeEmailTask constructs an Asynq task for a welcome email.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// NewOTPEmailTask constructs an Asynq task for an OTP email.
func NewOTPEmailTask(payload OTPEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOTPEmail, data), nil
}

// Sender delivers a single message to a recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HandleWelcomeEmailTask processes TaskTypeWelcomeEmail tasks.
func HandleWelcomeEmailTask(mailer Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WelcomeEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nYour account has been created with the %s role.\nPlease change your password after your first login.\n",
			payload.FirstName, payload.Role)
		return mailer.Send(ctx, payload.To, "Welcome to the platform", body)
	}
}

// HandleOTPEmailTask processes TaskTypeOTPEmail tasks.
func HandleOTPEmailTask(mailer Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OTPEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf(
			"Your password reset code is %s.\nIt expires in 5 minutes. If you did not request a reset, ignore this message.\n",
			payload.Code)
		return mailer.Send(ctx, payload.To, "Password reset code", body)
	}
}

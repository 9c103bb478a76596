package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	to      string
	subject string
	body    string
	err     error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

func TestHandleWelcomeEmailTask(t *testing.T) {
	task, err := NewWelcomeEmailTask(WelcomeEmailPayload{To: "ada@test.local", FirstName: "Ada", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeWelcomeEmail, task.Type())

	sender := &fakeSender{}
	require.NoError(t, HandleWelcomeEmailTask(sender)(context.Background(), task))

	assert.Equal(t, "ada@test.local", sender.to)
	assert.Contains(t, sender.body, "Ada")
	assert.Contains(t, sender.body, "admin")
}

func TestHandleOTPEmailTask(t *testing.T) {
	task, err := NewOTPEmailTask(OTPEmailPayload{To: "ada@test.local", Code: "123456"})
	require.NoError(t, err)

	sender := &fakeSender{}
	require.NoError(t, HandleOTPEmailTask(sender)(context.Background(), task))

	assert.Equal(t, "ada@test.local", sender.to)
	assert.Contains(t, sender.body, "123456")
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	sender := &fakeSender{}

	err := HandleWelcomeEmailTask(sender)(context.Background(), asynq.NewTask(TaskTypeWelcomeEmail, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = HandleOTPEmailTask(sender)(context.Background(), asynq.NewTask(TaskTypeOTPEmail, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, sender.to)
}

func TestSenderErrorPropagates(t *testing.T) {
	task, err := NewOTPEmailTask(OTPEmailPayload{To: "ada@test.local", Code: "123456"})
	require.NoError(t, err)

	sendErr := errors.New("smtp: connection refused")
	sender := &fakeSender{err: sendErr}
	assert.ErrorIs(t, HandleOTPEmailTask(sender)(context.Background(), task), sendErr)
}

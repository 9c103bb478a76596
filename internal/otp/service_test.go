package otp_test

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/otp"
	"github.com/inpetum/identity/internal/platform/httpx"
	_ "github.com/inpetum/identity/testing"
)

type stubCreds struct {
	account    accounts.Account
	credential accounts.Credential
	newHash    string
}

func (s *stubCreds) FindCredentialByEmail(ctx context.Context, email string) (accounts.Credential, accounts.Account, error) {
	if email != s.credential.Email {
		return accounts.Credential{}, accounts.Account{}, httpx.ErrNotFound
	}
	return s.credential, s.account, nil
}

func (s *stubCreds) UpdatePasswordHash(ctx context.Context, accountID uuid.UUID, hash string) error {
	s.newHash = hash
	return nil
}

type stubMailer struct {
	sentTo   []string
	lastCode string
}

func (s *stubMailer) SendOTPEmail(ctx context.Context, to, code string) error {
	s.sentTo = append(s.sentTo, to)
	s.lastCode = code
	return nil
}

type stubInvalidator struct {
	invalidated []uuid.UUID
}

func (s *stubInvalidator) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	s.invalidated = append(s.invalidated, accountID)
	return nil
}

type fixture struct {
	service  *otp.Service
	creds    *stubCreds
	mailer   *stubMailer
	sessions *stubInvalidator
}

func newFixture(t *testing.T, cfg otp.Config) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	accountID := uuid.New()
	creds := &stubCreds{
		account: accounts.Account{ID: accountID, Status: accounts.StatusActive},
		credential: accounts.Credential{
			ID:        uuid.New(),
			Email:     "user@test.local",
			AccountID: accountID,
		},
	}
	mailer := &stubMailer{}
	sessions := &stubInvalidator{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := otp.NewStore(client, cfg.TTL)
	service := otp.NewService(logger, store, creds, mailer, sessions, cfg)
	return fixture{service: service, creds: creds, mailer: mailer, sessions: sessions}
}

func TestRequestChallengeUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: true})

	err := f.service.RequestChallenge(context.Background(), "nobody@test.local", "10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, f.mailer.sentTo)
}

func TestChallengeRoundTrip(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: true})
	ctx := context.Background()

	require.NoError(t, f.service.RequestChallenge(ctx, "User@Test.Local", "10.0.0.1"))
	require.Equal(t, []string{"user@test.local"}, f.mailer.sentTo)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), f.mailer.lastCode)

	require.NoError(t, f.service.Redeem(ctx, "user@test.local", f.mailer.lastCode, "newpass99"))
	assert.True(t, accounts.CompareSecret(f.creds.newHash, "newpass99"))
	assert.Equal(t, []uuid.UUID{f.creds.account.ID}, f.sessions.invalidated)

	// The challenge is consumed; replaying the code must fail.
	err := f.service.Redeem(ctx, "user@test.local", f.mailer.lastCode, "otherpass1")
	assert.ErrorIs(t, err, otp.ErrInvalidOrExpired)
}

func TestRedeemWrongCodeKeepsChallenge(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: true})
	ctx := context.Background()

	require.NoError(t, f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.1"))

	err := f.service.Redeem(ctx, "user@test.local", "000000", "newpass99")
	if f.mailer.lastCode == "000000" {
		t.Skip("generated code collided with the guess")
	}
	assert.ErrorIs(t, err, otp.ErrInvalidOrExpired)

	// A wrong guess does not consume the live challenge.
	require.NoError(t, f.service.Redeem(ctx, "user@test.local", f.mailer.lastCode, "newpass99"))
}

func TestRedeemWeakSecretKeepsChallenge(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: true})
	ctx := context.Background()

	require.NoError(t, f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.1"))

	err := f.service.Redeem(ctx, "user@test.local", f.mailer.lastCode, "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, f.creds.newHash)

	require.NoError(t, f.service.Redeem(ctx, "user@test.local", f.mailer.lastCode, "newpass99"))
}

func TestRequestChallengeRateLimit(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: true, MaxAttempts: 2, AttemptWindow: time.Minute})
	ctx := context.Background()

	require.NoError(t, f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.1"))
	require.NoError(t, f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.1"))

	err := f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.1")
	assert.ErrorIs(t, err, httpx.ErrRateLimited)

	// A different client address has its own budget.
	assert.NoError(t, f.service.RequestChallenge(ctx, "user@test.local", "10.0.0.2"))
}

func TestRedeemWithVerificationDisabled(t *testing.T) {
	f := newFixture(t, otp.Config{VerificationEnabled: false})
	ctx := context.Background()

	// No challenge was ever requested; any code passes.
	require.NoError(t, f.service.Redeem(ctx, "user@test.local", "ignored", "newpass99"))
	assert.True(t, accounts.CompareSecret(f.creds.newHash, "newpass99"))

	// Secret strength still applies.
	err := f.service.Redeem(ctx, "user@test.local", "ignored", "weak")
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

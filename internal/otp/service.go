package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/httpx"
)

// ErrInvalidOrExpired indicates the code is absent, mismatched or expired.
var ErrInvalidOrExpired = fmt.Errorf("invalid or expired code: %w", httpx.ErrUnauthorized)

// CredentialStore is the slice of account persistence the flow needs.
type CredentialStore interface {
	FindCredentialByEmail(ctx context.Context, email string) (accounts.Credential, accounts.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID uuid.UUID, hash string) error
}

// Mailer dispatches the one-time code. Failures are logged, never fatal.
type Mailer interface {
	SendOTPEmail(ctx context.Context, to, code string) error
}

// SessionInvalidator revokes all sessions for an account.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// Config tunes the recovery flow.
type Config struct {
	// TTL is the challenge lifetime.
	TTL time.Duration
	// VerificationEnabled gates the code comparison during redemption.
	// When disabled, redemption still enforces secret strength.
	VerificationEnabled bool
	// MaxAttempts bounds challenge requests per client address per window.
	MaxAttempts int
	// AttemptWindow is the counter expiry window.
	AttemptWindow time.Duration
}

// Service drives the challenge state machine.
type Service struct {
	logger   *slog.Logger
	store    *Store
	creds    CredentialStore
	mailer   Mailer
	sessions SessionInvalidator
	cfg      Config
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, store *Store, creds CredentialStore, mailer Mailer, sessions SessionInvalidator, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 15 * time.Minute
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Service{logger: logger, store: store, creds: creds, mailer: mailer, sessions: sessions, cfg: cfg}
}

// RequestChallenge starts a recovery. The response shape is identical
// whether or not the email exists, so enumeration is impossible; a
// challenge is only created and dispatched for known emails. A new
// challenge supersedes any live one for the same account.
func (s *Service) RequestChallenge(ctx context.Context, email, clientIP string) error {
	count, err := s.store.CountAttempt(ctx, clientIP, s.cfg.AttemptWindow)
	if err != nil {
		return err
	}
	if count > int64(s.cfg.MaxAttempts) {
		return fmt.Errorf("too many recovery attempts: %w", httpx.ErrRateLimited)
	}

	cred, acct, err := s.creds.FindCredentialByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.store.Put(ctx, Challenge{
		AccountID: acct.ID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}); err != nil {
		return err
	}

	if err := s.mailer.SendOTPEmail(ctx, cred.Email, code); err != nil {
		s.logger.Warn("enqueue otp email", slog.Any("error", err))
	}
	return nil
}

// Redeem exchanges a valid code for a secret rotation. On success the
// challenge is consumed and the account's sessions are revoked so the
// new secret is the only way in.
func (s *Service) Redeem(ctx context.Context, email, code, newSecret string) error {
	_, acct, err := s.creds.FindCredentialByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	if s.cfg.VerificationEnabled {
		ch, ok, err := s.store.Get(ctx, acct.ID)
		if err != nil {
			return err
		}
		if !ok || ch.Code != code {
			return ErrInvalidOrExpired
		}
	}

	if err := accounts.ValidateSecretStrength(newSecret); err != nil {
		return err
	}
	hash, err := accounts.HashSecret(newSecret)
	if err != nil {
		return err
	}
	if err := s.creds.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, acct.ID); err != nil {
		return err
	}
	if err := s.sessions.Invalidate(ctx, acct.ID); err != nil {
		s.logger.Warn("invalidate sessions after reset", slog.Any("error", err))
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

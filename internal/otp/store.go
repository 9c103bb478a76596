// Package otp implements the one-time-code password recovery flow.
package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Challenge is the short-lived recovery state for one account. At most
// one challenge is live per account; storing a new one supersedes it.
type Challenge struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps challenges and per-IP attempt counters in Redis, each
// with an explicit expiry so stale entries never accumulate.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store with the challenge time-to-live.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Put stores a challenge, superseding any prior one for the account.
func (s *Store) Put(ctx context.Context, ch Challenge) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("otp: marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(ch.AccountID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("otp: store challenge: %w", err)
	}
	return nil
}

// Get fetches the live challenge for an account, if any.
func (s *Store) Get(ctx context.Context, accountID uuid.UUID) (Challenge, bool, error) {
	payload, err := s.client.Get(ctx, challengeKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, false, nil
		}
		return Challenge{}, false, fmt.Errorf("otp: load challenge: %w", err)
	}
	var ch Challenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return Challenge{}, false, fmt.Errorf("otp: decode challenge: %w", err)
	}
	return ch, true, nil
}

// Delete removes the challenge for an account.
func (s *Store) Delete(ctx context.Context, accountID uuid.UUID) error {
	if err := s.client.Del(ctx, challengeKey(accountID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("otp: delete challenge: %w", err)
	}
	return nil
}

// CountAttempt bumps the per-IP request counter and returns the new
// value. The counter key expires with the window, so a single-instance
// map never grows unbounded and multiple instances share the budget.
func (s *Store) CountAttempt(ctx context.Context, ip string, window time.Duration) (int64, error) {
	key := attemptKey(ip)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("otp: count attempt: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("otp: expire attempt counter: %w", err)
		}
	}
	return count, nil
}

func challengeKey(accountID uuid.UUID) string {
	return "otp:" + accountID.String()
}

func attemptKey(ip string) string {
	return "otp_attempts:" + ip
}

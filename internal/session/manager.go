// Package session issues and validates bearer tokens backed by an
// ephemeral Redis store. Issuing a new session for an account replaces
// the stored token, so at most one session per account validates at any
// time.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const issuer = "inpetum-identity"

// Validation failure reasons. Both surface to callers as a single
// "invalid or expired token" response, but stay distinct internally.
var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrExpired      = errors.New("session: token expired")
	ErrRevoked      = errors.New("session: token revoked")
)

// Claims carries the signed session payload.
type Claims struct {
	RoleName  string    `json:"role"`
	RoleID    uuid.UUID `json:"role_id"`
	SessionID string    `json:"session_id"`
	jwt.RegisteredClaims
}

// Session is the issued state returned to callers.
type Session struct {
	ID        string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal describes the authenticated actor resolved from a token.
type Principal struct {
	AccountID uuid.UUID
	RoleID    uuid.UUID
	RoleName  string
	SessionID string
}

// record is the payload snapshot stored under the session ID key.
type record struct {
	SessionID string    `json:"session_id"`
	AccountID uuid.UUID `json:"account_id"`
	Token     string    `json:"token"`
	RoleName  string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager issues and validates sessions.
type Manager struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, secret string, ttl time.Duration) *Manager {
	return &Manager{client: client, secret: []byte(secret), ttl: ttl}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the account and stores the session state under
// three keys: token-by-account, payload-by-session-id and the
// latest-session pointer. Each key carries the session TTL.
func (m *Manager) Issue(ctx context.Context, accountID, roleID uuid.UUID, roleName string) (Session, error) {
	now := time.Now().UTC()
	sessionID := "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	claims := Claims{
		RoleName:  roleName,
		RoleID:    roleID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("session: sign token: %w", err)
	}

	payload, err := json.Marshal(record{
		SessionID: sessionID,
		AccountID: accountID,
		Token:     token,
		RoleName:  roleName,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: marshal payload: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, tokenKey(accountID), token, m.ttl)
	pipe.Set(ctx, sessionID, payload, m.ttl)
	pipe.Set(ctx, pointerKey(accountID), sessionID, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("session: store: %w", err)
	}

	return Session{ID: sessionID, Token: token, IssuedAt: now, ExpiresAt: now.Add(m.ttl)}, nil
}

// Validate verifies the token signature and expiry, then cross-checks
// that the stored token-by-account record still equals the presented
// token. A newer session for the same account revokes older ones.
func (m *Manager) Validate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpired
		}
		return Principal{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	stored, err := m.client.Get(ctx, tokenKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, ErrRevoked
		}
		return Principal{}, fmt.Errorf("session: lookup token: %w", err)
	}
	if stored != token {
		return Principal{}, ErrRevoked
	}

	return Principal{
		AccountID: accountID,
		RoleID:    claims.RoleID,
		RoleName:  claims.RoleName,
		SessionID: claims.SessionID,
	}, nil
}

// Invalidate deletes all session keys for the account. Used at logout
// and after mutations that change the account's role.
func (m *Manager) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	sessionID, err := m.client.Get(ctx, pointerKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: lookup pointer: %w", err)
	}

	keys := []string{tokenKey(accountID), pointerKey(accountID)}
	if sessionID != "" {
		keys = append(keys, sessionID)
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func tokenKey(accountID uuid.UUID) string {
	return "token:" + accountID.String()
}

func pointerKey(accountID uuid.UUID) string {
	return "account:" + accountID.String() + ":session"
}

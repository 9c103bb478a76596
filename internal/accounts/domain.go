// Package accounts owns the account entity and its login credential.
package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an account.
type Status string

// Account lifecycle states.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Account is an end-user identity record, distinct from its credential.
// Every account carries exactly one role.
type Account struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	RoleID    uuid.UUID
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is the email and secret hash pair used to authenticate an
// account. Email is unique across the whole system and the secret is
// only ever stored as a bcrypt hash.
type Credential struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	AccountID    uuid.UUID
	Verified     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the list-view projection joining account, email and role.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    Status    `json:"status"`
}

package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/rbac"
)

// ErrInvalidCredentials is returned for unknown emails and wrong secrets
// alike, so a caller cannot tell which factor failed.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", httpx.ErrUnauthorized)

// LoginResult bundles the records resolved during authentication.
type LoginResult struct {
	Account    accounts.Account
	Credential accounts.Credential
	Role       rbac.Role
}

// RegisterInput is the validated payload for account creation.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Secret    string
	Role      string
}

// RegisteredAccount is the projection returned after registration.
type RegisteredAccount struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/platform/httpx"
)

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for accounts and
// credentials.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository over a pool or transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// CreateAccount inserts a new account row.
func (r *Repository) CreateAccount(ctx context.Context, acct Account) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO accounts (id, first_name, last_name, role_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		acct.ID, acct.FirstName, acct.LastName, acct.RoleID, acct.Status)
	return err
}

// CreateCredential inserts the credential for an account. The hash must
// already be computed; plaintext never reaches this layer.
func (r *Repository) CreateCredential(ctx context.Context, cred Credential) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO credentials (id, email, password_hash, account_id, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		cred.ID, cred.Email, cred.PasswordHash, cred.AccountID, cred.Verified)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindCredentialByEmail fetches a credential with its account joined in.
func (r *Repository) FindCredentialByEmail(ctx context.Context, email string) (Credential, Account, error) {
	row := r.q.QueryRow(ctx, `
		SELECT c.id, c.email, c.password_hash, c.account_id, c.verified, c.last_login_at,
		       a.id, a.first_name, a.last_name, a.role_id, a.status
		FROM credentials c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.email = $1`, email)
	var cred Credential
	var acct Account
	if err := row.Scan(
		&cred.ID, &cred.Email, &cred.PasswordHash, &cred.AccountID, &cred.Verified, &cred.LastLoginAt,
		&acct.ID, &acct.FirstName, &acct.LastName, &acct.RoleID, &acct.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, Account{}, httpx.ErrNotFound
		}
		return Credential{}, Account{}, err
	}
	return cred, acct, nil
}

// GetAccount fetches an account by ID.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, first_name, last_name, role_id, status, created_at, updated_at
		FROM accounts WHERE id = $1`, id)
	var acct Account
	if err := row.Scan(&acct.ID, &acct.FirstName, &acct.LastName, &acct.RoleID, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account: %w", httpx.ErrNotFound)
		}
		return Account{}, err
	}
	return acct, nil
}

// ListAccounts returns all accounts joined with email and role name.
func (r *Repository) ListAccounts(ctx context.Context) ([]Summary, error) {
	rows, err := r.q.Query(ctx, `
		SELECT a.id, a.first_name, a.last_name, c.email, r.name, a.status
		FROM accounts a
		JOIN credentials c ON c.account_id = a.id
		JOIN roles r ON r.id = a.role_id
		ORDER BY a.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Role, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAccount removes an account; the credential row cascades.
func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account: %w", httpx.ErrNotFound)
	}
	return nil
}

// UpdateAccountRole moves the account onto a new role.
func (r *Repository) UpdateAccountRole(ctx context.Context, id, roleID uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET role_id = $2, updated_at = now() WHERE id = $1`, id, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account: %w", httpx.ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash overwrites the credential hash for an account.
func (r *Repository) UpdatePasswordHash(ctx context.Context, accountID uuid.UUID, hash string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE credentials SET password_hash = $2, updated_at = now() WHERE account_id = $1`, accountID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential: %w", httpx.ErrNotFound)
	}
	return nil
}

// TouchLastLogin records a successful login timestamp. Side effect only;
// failures are the caller's to log and ignore.
func (r *Repository) TouchLastLogin(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE credentials SET last_login_at = $2 WHERE account_id = $1`, accountID, at.UTC())
	return err
}

// isUniqueViolation covers drivers that wrap the pg error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Package testutil provides in-memory doubles for the persistence layer.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/rbac"
)

// FakeDB answers the repositories' queries from maps and records
// transaction boundaries, so tests can assert that a denied mutation
// rolled back instead of committing. Writes apply immediately; rollback
// assertions go through the counters, not the data.
type FakeDB struct {
	mu          sync.Mutex
	Accounts    map[uuid.UUID]accounts.Account
	Credentials map[uuid.UUID]accounts.Credential // keyed by account ID
	Roles       map[uuid.UUID]rbac.Role
	Perms       map[uuid.UUID][]string

	Begun      int
	Committed  int
	RolledBack int
}

var _ db.Pool = (*FakeDB)(nil)

// NewFakeDB returns an empty store.
func NewFakeDB() *FakeDB {
	return &FakeDB{
		Accounts:    map[uuid.UUID]accounts.Account{},
		Credentials: map[uuid.UUID]accounts.Credential{},
		Roles:       map[uuid.UUID]rbac.Role{},
		Perms:       map[uuid.UUID][]string{},
	}
}

// AddRole registers a role with its effective permission set.
func (f *FakeDB) AddRole(name string, perms ...string) rbac.Role {
	role := rbac.Role{ID: uuid.New(), Name: name}
	f.Roles[role.ID] = role
	f.Perms[role.ID] = perms
	return role
}

// AddAccount registers an active account carrying the given role.
func (f *FakeDB) AddAccount(roleID uuid.UUID) accounts.Account {
	acct := accounts.Account{ID: uuid.New(), RoleID: roleID, Status: accounts.StatusActive}
	f.Accounts[acct.ID] = acct
	return acct
}

// BeginTx hands out a transaction bound to the shared store.
func (f *FakeDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.mu.Lock()
	f.Begun++
	f.mu.Unlock()
	return &fakeTx{db: f}, nil
}

func (f *FakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM accounts WHERE id"):
		acct, ok := f.Accounts[args[0].(uuid.UUID)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{acct.ID, acct.FirstName, acct.LastName, acct.RoleID, acct.Status, acct.CreatedAt, acct.UpdatedAt}}
	case strings.Contains(sql, "FROM roles WHERE id"):
		role, ok := f.Roles[args[0].(uuid.UUID)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return roleRow(role)
	case strings.Contains(sql, "FROM roles WHERE name"):
		for _, role := range f.Roles {
			if role.Name == args[0].(string) {
				return roleRow(role)
			}
		}
		return fakeRow{err: pgx.ErrNoRows}
	default:
		return fakeRow{err: fmt.Errorf("testutil: unexpected query: %s", sql)}
	}
}

func (f *FakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if strings.Contains(sql, "JOIN role_permissions") {
		var rows [][]any
		for _, p := range f.Perms[args[0].(uuid.UUID)] {
			rows = append(rows, []any{p})
		}
		return &fakeRows{rows: rows}, nil
	}
	return nil, fmt.Errorf("testutil: unexpected query: %s", sql)
}

func (f *FakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "UPDATE accounts SET role_id"):
		acct, ok := f.Accounts[args[0].(uuid.UUID)]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		acct.RoleID = args[1].(uuid.UUID)
		f.Accounts[acct.ID] = acct
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.Contains(sql, "DELETE FROM accounts"):
		id := args[0].(uuid.UUID)
		if _, ok := f.Accounts[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(f.Accounts, id)
		delete(f.Credentials, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	case strings.Contains(sql, "INSERT INTO accounts"):
		f.Accounts[args[0].(uuid.UUID)] = accounts.Account{
			ID:        args[0].(uuid.UUID),
			FirstName: args[1].(string),
			LastName:  args[2].(string),
			RoleID:    args[3].(uuid.UUID),
			Status:    args[4].(accounts.Status),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "INSERT INTO credentials"):
		accountID := args[3].(uuid.UUID)
		f.Credentials[accountID] = accounts.Credential{
			ID:           args[0].(uuid.UUID),
			Email:        args[1].(string),
			PasswordHash: args[2].(string),
			AccountID:    accountID,
			Verified:     args[4].(bool),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	default:
		return pgconn.CommandTag{}, fmt.Errorf("testutil: unexpected exec: %s", sql)
	}
}

// fakeTx embeds the interface for the methods the repositories never
// reach; calling one of those panics, which is the test failing loudly.
type fakeTx struct {
	pgx.Tx
	db   *FakeDB
	done bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Lock()
	t.db.Committed++
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Lock()
	t.db.RolledBack++
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func roleRow(role rbac.Role) fakeRow {
	return fakeRow{vals: []any{role.ID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt}}
}

type fakeRow struct {
	err  error
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.vals)
}

type fakeRows struct {
	pgx.Rows
	rows [][]any
	i    int
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(dest, r.rows[r.i-1])
}

func scanInto(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("testutil: scan arity mismatch: %d dest, %d vals", len(dest), len(vals))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(vals[i]))
	}
	return nil
}

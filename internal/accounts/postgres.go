// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema is the minimal table layout PGStore reads from.
const Schema = `
create table if not exists users (
	id             text primary key,
	email          text not null unique,
	name           text not null default '',
	password_hash  text not null default '',
	email_verified boolean not null default false,
	phone_verified boolean not null default false,
	created_at     timestamptz not null default now()
);
create table if not exists accounts (
	id             text primary key,
	user_id        text not null references users(id),
	role           text not null,
	workspace_id   text not null,
	workspace_type text not null,
	suspended      boolean not null default false,
	memberships    text[] not null default '{}',
	grants         text[] not null default '{}'
);
create index if not exists accounts_user_id_idx on accounts(user_id);
`

const accountColumns = `id, user_id, role, workspace_id, workspace_type, suspended,
	coalesce(array_to_string(memberships, ','), ''), coalesce(array_to_string(grants, ','), '')`

const userColumns = `id, email, name, password_hash, email_verified, phone_verified, created_at`

// PGOptions tunes the connection pool.
type PGOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PGStore reads accounts from PostgreSQL through the pgx database/sql driver.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

// OpenPG opens a pooled connection. It does not ping.
func OpenPG(dsn string, opts PGOptions) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Close closes the pool.
func (s *PGStore) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// EnsureSchema creates the tables when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return a, nil
}

func (s *PGStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return s.user(row)
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`,
		strings.TrimSpace(email))
	return s.user(row)
}

func (s *PGStore) ListAccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `select `+accountColumns+` from accounts where user_id = $1 order by id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PGStore) SetSuspended(ctx context.Context, accountID string, suspended bool) error {
	res, err := s.db.ExecContext(ctx, `update accounts set suspended = $2 where id = $1`, accountID, suspended)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PGStore) user(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.EmailVerified, &u.PhoneVerified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*Account, error) {
	var (
		a                   Account
		memberships, grants string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Role, &a.WorkspaceID, &a.WorkspaceType, &a.Suspended, &memberships, &grants); err != nil {
		return nil, err
	}
	a.Memberships = splitList(memberships)
	a.Grants = splitList(grants)
	return &a, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package storage persists accounts, the signed-in session and UI
// preferences in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/giygas/medisearch/interfaces"
)

// ThemeKey is the preference key of the dark theme toggle
const ThemeKey = "theme"

// sessionKey is the single row of the session table
const sessionKey = "current"

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an account already uses the email
	ErrDuplicateEmail = errors.New("email already registered")
)

// Compile-time check to ensure Store implements PreferenceStore
var _ interfaces.PreferenceStore = (*Store)(nil)

// Account is a stored local account
type Account struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Store wraps the SQLite database
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	uid TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session (
	key TEXT PRIMARY KEY,
	uid TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAccount inserts a new account. Emails are unique.
func (s *Store) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		account.UID, account.Email, account.PasswordHash, account.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// AccountByEmail looks an account up by email
func (s *Store) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.account(ctx, `SELECT uid, email, password_hash, created_at FROM accounts WHERE email = ?`, email)
}

// AccountByUID looks an account up by uid
func (s *Store) AccountByUID(ctx context.Context, uid string) (Account, error) {
	return s.account(ctx, `SELECT uid, email, password_hash, created_at FROM accounts WHERE uid = ?`, uid)
}

func (s *Store) account(ctx context.Context, query string, arg string) (Account, error) {
	var (
		account Account
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&account.UID, &account.Email, &account.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	account.CreatedAt = time.UnixMilli(created)
	return account, nil
}

// SaveSession records uid as the signed-in account
func (s *Store) SaveSession(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (key, uid) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET uid = excluded.uid`,
		sessionKey, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the signed-in uid, or ErrNotFound
func (s *Store) LoadSession(ctx context.Context) (string, error) {
	var uid string
	err := s.db.QueryRowContext(ctx, `SELECT uid FROM session WHERE key = ?`, sessionKey).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return uid, nil
}

// ClearSession forgets the signed-in account
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// GetBool returns a boolean preference, false when unset
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("preference %s is not a boolean: %w", key, err)
	}
	return b, nil
}

// SetBool stores a boolean preference
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, strconv.FormatBool(value),
	)
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

// isUniqueViolation matches SQLite's constraint message so callers do not
// depend on driver error types.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

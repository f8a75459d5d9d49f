// ABOUTME: PersistentStore handle wrapping the SQLite connection
// ABOUTME: Serializes units of work, runs transactions, and defines typed storage errors
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotInitialized is returned when the store is used before Init.
var ErrNotInitialized = errors.New("store not initialized")

// StorageError wraps an I/O, transaction, or constraint failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed contact, signal, or email input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Store is the durable store for contacts, aliases, trust signals and sync state.
// Every unit of work holds mu, so the one connection is never used concurrently.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	initialized atomic.Bool
	now         func() time.Time
}

// NewStore wraps an open database. Call Init before use.
func NewStore(database *sql.DB) *Store {
	return &Store{
		db:  database,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open opens the database at path and returns an initialized store.
func Open(ctx context.Context, path string) (*Store, error) {
	database, err := OpenDatabase(path)
	if err != nil {
		return nil, &StorageError{Op: "open database", Err: err}
	}

	s := NewStore(database)
	if err := s.Init(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the schema if needed and marks the store ready.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &StorageError{Op: "initialize schema", Err: err}
	}
	s.initialized.Store(true)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized.Store(false)
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside one transaction under the store lock.
// Nothing fn wrote survives unless fn returns nil and the commit succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("failed to start transaction: %w", err)}
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	if err := fn(tx); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return &StorageError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// read runs fn under the store lock without a transaction.
func (s *Store) read(ctx context.Context, op string, fn func() error) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

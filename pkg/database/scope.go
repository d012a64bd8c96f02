package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope wraps a pooled connection for the duration of one request or task.
// When opened for a user, app.current_user_id is set on the connection so
// column defaults such as updated_by can read it.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close resets the user setting and releases the connection to the pool.
// This MUST be called to prevent the user context from leaking to the next borrower.
func (s *Scope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_user_id")
	s.Conn.Release()
	s.Conn = nil
}

// InTx runs fn inside a transaction on the scope's connection.
// The transaction is rolled back when fn returns an error.
func (s *Scope) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithUser acquires a connection and records the acting user on it.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithUser(ctx context.Context, userID uuid.UUID) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_user_id', $1, false)", userID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &Scope{Conn: conn}, nil
}

// WithoutUser acquires a connection with no acting user.
// Use this for background tasks, seeding and login.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithoutUser(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}

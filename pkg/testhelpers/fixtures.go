package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
)

// SeedUser inserts an active user holding role and returns its ID.
func (s *SalesDB) SeedUser(t *testing.T, role string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	name := role + "_" + id.String()[:8]
	s.Exec(t, `INSERT INTO users (id, username, email, role) VALUES ($1, $2, $3, $4)`,
		id, name, name+"@sales.test", role)
	return id
}

// As returns a context acting as userID with role. The database scope is
// released when the test ends.
func (s *SalesDB) As(t *testing.T, userID uuid.UUID, role string) context.Context {
	t.Helper()

	scope, err := s.DB.WithUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("open scope for %s: %v", userID, err)
	}
	t.Cleanup(scope.Close)

	ctx := auth.WithClaims(context.Background(), auth.ClaimsFor(auth.Principal{UserID: userID, Role: role}, "ekaya-sales"))
	return database.SetScope(ctx, scope)
}

// System returns a context with a system scope, as background tasks use.
func (s *SalesDB) System(t *testing.T) context.Context {
	t.Helper()

	scope, err := s.DB.WithoutUser(context.Background())
	if err != nil {
		t.Fatalf("open system scope: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetScope(context.Background(), scope)
}

// Exec runs a statement on a system scope and fails the test on error.
func (s *SalesDB) Exec(t *testing.T, sql string, args ...any) {
	t.Helper()
	ctx := context.Background()

	scope, err := s.DB.WithoutUser(ctx)
	if err != nil {
		t.Fatalf("open system scope: %v", err)
	}
	defer scope.Close()

	if _, err := scope.Conn.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

// Backdate moves updated_at of one row in table back by interval. The
// set_updated_at triggers are bypassed for the update.
func (s *SalesDB) Backdate(t *testing.T, table string, id uuid.UUID, interval string) {
	t.Helper()
	ctx := context.Background()

	scope, err := s.DB.WithoutUser(ctx)
	if err != nil {
		t.Fatalf("open system scope: %v", err)
	}
	defer scope.Close()

	err = scope.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SET LOCAL session_replication_role = replica`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE `+table+` SET updated_at = now() - $2::interval WHERE id = $1`, id, interval)
		return err
	})
	if err != nil {
		t.Fatalf("backdate %s %s: %v", table, id, err)
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
)

// errNoScope is returned when a repository is called without a database scope.
var errNoScope = errors.New("no database scope in context")

// querier is satisfied by both a pooled connection and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getScope(ctx context.Context) (*database.Scope, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}
	return scope, nil
}

// wrapErr maps driver errors onto apperrors sentinels and adds context to the rest.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	case database.IsForeignKeyViolation(err), database.IsCheckViolation(err):
		return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidInput)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonNil keeps empty slices from being written as NULL into NOT NULL array columns.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// normalizePageParams ensures limit and offset are within reasonable bounds.
func normalizePageParams(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// likePattern escapes s for use inside an ILIKE '%...%' pattern.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; each "?" in cond is replaced with the next placeholder.
func (w *whereBuilder) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// next reserves a placeholder for an argument outside the WHERE clause.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// execOne runs a statement that must affect exactly one row.
func execOne(ctx context.Context, op, query string, args ...any) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	result, err := scope.Conn.Exec(ctx, query, args...)
	if err != nil {
		return wrapErr(op, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

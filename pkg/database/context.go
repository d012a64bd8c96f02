package database

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider opens scoped contexts for code that runs outside an HTTP request
// (background tasks, MCP tools, CLI commands).
type ScopeProvider interface {
	WithScope(ctx context.Context, userID uuid.UUID) (context.Context, func(), error)
}

type scopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) ScopeProvider {
	return &scopeProvider{db: db}
}

// WithScope returns a context carrying a fresh scope. A nil userID opens a
// system scope. The cleanup function must be called when done.
func (p *scopeProvider) WithScope(ctx context.Context, userID uuid.UUID) (context.Context, func(), error) {
	var (
		scope *Scope
		err   error
	)
	if userID == uuid.Nil {
		scope, err = p.db.WithoutUser(ctx)
	} else {
		scope, err = p.db.WithUser(ctx, userID)
	}
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}

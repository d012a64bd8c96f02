package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
)

// visibleOwner returns nil when the caller may see every user's records,
// otherwise the caller's id to filter listings by.
func visibleOwner(ctx context.Context) *uuid.UUID {
	if auth.CanViewAll(ctx) {
		return nil
	}
	id, _ := auth.GetUserIDFromContext(ctx)
	return &id
}

// checkOwner hides records created by another user from callers that cannot view all.
func checkOwner(ctx context.Context, createdBy *uuid.UUID) error {
	owner := visibleOwner(ctx)
	if owner == nil {
		return nil
	}
	if createdBy == nil || *createdBy != *owner {
		return apperrors.ErrNotFound
	}
	return nil
}

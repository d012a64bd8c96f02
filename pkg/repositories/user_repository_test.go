//go:build integration

package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/testhelpers"
)

func TestUserRepository_CRUD(t *testing.T) {
	db := testhelpers.Postgres(t)
	ctx := db.System(t)

	repo := NewUserRepository()
	suffix := uuid.NewString()[:8]
	user := &models.User{
		Username:     "rep_" + suffix,
		Email:        "Rep." + suffix + "@Example.com",
		PasswordHash: "hash",
		FirstName:    "Ren",
		Role:         auth.RoleSalesRep,
		IsActive:     true,
	}
	require.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.GetByEmail(ctx, "rep."+suffix+"@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	dup := *user
	assert.ErrorIs(t, repo.Create(ctx, &dup), apperrors.ErrConflict)

	require.NoError(t, repo.RecordLogin(ctx, user.ID, "10.1.2.3"))
	got, err := repo.GetByUsername(ctx, user.Username)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginIP)
	assert.Equal(t, "10.1.2.3", *got.LastLoginIP)
	assert.NotNil(t, got.LastLoginAt)

	got.Role = auth.RoleSalesManager
	require.NoError(t, repo.Update(ctx, got))
	require.NoError(t, repo.UpdatePassword(ctx, got.ID, "new-hash"))

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSalesManager, got.Role)
	assert.Equal(t, "new-hash", got.PasswordHash)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestActivityLogRepository_Filter(t *testing.T) {
	db := testhelpers.Postgres(t)
	userID := db.SeedUser(t, auth.RoleAdmin)
	ctx := db.As(t, userID, auth.RoleAdmin)

	repo := NewActivityLogRepository()
	for _, action := range []string{models.ActionLogin, models.ActionCreate, models.ActionCreate} {
		require.NoError(t, repo.Create(ctx, &models.ActivityLog{
			UserID:     &userID,
			Action:     action,
			TargetType: "company",
			Summary:    action + " company",
		}))
	}

	logs, err := repo.List(ctx, models.ActivityLogFilter{UserID: &userID, Action: models.ActionCreate})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.NotEmpty(t, logs[0].Username)

	logs, err = repo.List(ctx, models.ActivityLogFilter{UserID: &userID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/audit"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

const testPassword = "s3cretpass"

func newTestUserService(t *testing.T, repo *mockUserRepo, settings *mockSettingsService) UserService {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", "ekaya-sales", time.Hour)
	require.NoError(t, err)
	return NewUserService(repo, settings, &mockScopes{}, tokens, auth.NewMemoryLoginLimiter(),
		audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
}

func activeUser(t *testing.T, username, role string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	return &models.User{ID: uuid.New(), Username: username, PasswordHash: hash, Role: role, IsActive: true}
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		user := activeUser(t, "alice", models.RoleSalesRep)
		repo := newMockUserRepo(user)
		settings := newMockSettings()
		svc := newTestUserService(t, repo, settings)

		got, err := svc.Login(ctx, " alice ", testPassword, "10.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, got.Token)
		assert.Equal(t, user.ID, got.Principal.UserID)
		assert.Equal(t, settings.settings.SessionTimeoutMinutes*60, got.SessionMaxAge)
		assert.Equal(t, "10.0.0.1", repo.loginIPs[user.ID])
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		repo := newMockUserRepo(activeUser(t, "alice", models.RoleSalesRep))
		svc := newTestUserService(t, repo, newMockSettings())

		_, err := svc.Login(ctx, "alice", "wrong-pass1", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		_, err = svc.Login(ctx, "bob", testPassword, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("inactive user", func(t *testing.T) {
		user := activeUser(t, "carol", models.RoleSalesRep)
		user.IsActive = false
		svc := newTestUserService(t, newMockUserRepo(user), newMockSettings())

		_, err := svc.Login(ctx, "carol", testPassword, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("locks after max attempts", func(t *testing.T) {
		settings := newMockSettings()
		settings.settings.MaxLoginAttempts = 3
		svc := newTestUserService(t, newMockUserRepo(activeUser(t, "dave", models.RoleSalesRep)), settings)

		for i := 0; i < 2; i++ {
			_, err := svc.Login(ctx, "dave", "wrong-pass1", "")
			assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		}
		_, err := svc.Login(ctx, "dave", "wrong-pass1", "")
		assert.ErrorIs(t, err, apperrors.ErrAccountLocked)

		_, err = svc.Login(ctx, "dave", testPassword, "")
		assert.ErrorIs(t, err, apperrors.ErrAccountLocked, "correct password is refused while locked")
	})
}

func TestUserService_Create(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, newMockSettings())
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateUserRequest{Username: "x", Password: "short"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Create(ctx, &CreateUserRequest{Username: "x", Password: testPassword, Role: "emperor"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)

	blank := "  "
	got, err := svc.Create(ctx, &CreateUserRequest{Username: " erin ", Password: testPassword, EmployeeID: &blank})
	require.NoError(t, err)
	assert.Equal(t, "erin", got.Username)
	assert.Equal(t, models.RoleSalesRep, got.Role)
	assert.Nil(t, got.EmployeeID)
	assert.True(t, auth.CheckPassword(got.PasswordHash, testPassword))
}

func TestUserService_LastAdminGuards(t *testing.T) {
	ctx := context.Background()
	admin := activeUser(t, "root", models.RoleAdmin)
	repo := newMockUserRepo(admin)
	repo.adminCount = 1
	svc := newTestUserService(t, repo, newMockSettings())

	demote := models.RoleSalesRep
	_, err := svc.Update(ctx, admin.ID, &UpdateUserRequest{Role: &demote})
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	inactive := false
	_, err = svc.Update(ctx, admin.ID, &UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	err = svc.Delete(ctx, admin.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	err = svc.Delete(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	repo.adminCount = 2
	_, err = svc.Update(ctx, admin.ID, &UpdateUserRequest{Role: &demote})
	require.NoError(t, err)
}

func TestUserService_ChangePassword(t *testing.T) {
	user := activeUser(t, "frank", models.RoleSalesRep)
	repo := newMockUserRepo(user)
	svc := newTestUserService(t, repo, newMockSettings())
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, "not-it-123", "newpass123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, user.ID, testPassword, "short")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, testPassword, "newpass123"))
	assert.True(t, auth.CheckPassword(repo.passwords[user.ID], "newpass123"))
}

func TestUserService_ResolveByID(t *testing.T) {
	user := activeUser(t, "gina", models.RoleSalesManager)
	inactive := activeUser(t, "hank", models.RoleSalesRep)
	inactive.IsActive = false
	svc := newTestUserService(t, newMockUserRepo(user, inactive), newMockSettings())

	p, err := svc.ResolveByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSalesManager, p.Role)

	_, err = svc.ResolveByID(context.Background(), inactive.ID)
	assert.ErrorIs(t, err, auth.ErrInactiveUser)

	_, err = svc.ResolveByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrInactiveUser)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/audit"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *models.User
	Principal auth.Principal
	Token     string
	ExpiresAt time.Time
	// SessionMaxAge is the browser session lifetime in seconds.
	SessionMaxAge int
}

// CreateUserRequest holds the fields for a new account.
type CreateUserRequest struct {
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	EmployeeID *string `json:"employee_id"`
	Phone      string  `json:"phone"`
}

// UpdateUserRequest is a partial user update; nil fields are left unchanged.
type UpdateUserRequest struct {
	Email      *string `json:"email"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	EmployeeID *string `json:"employee_id"`
	Phone      *string `json:"phone"`
	IsActive   *bool   `json:"is_active"`
	// Password resets the password when set.
	Password *string `json:"password"`
}

// UserService manages accounts and logins.
type UserService interface {
	auth.PrincipalResolver

	Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, req *CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*models.User, error)
	// Delete removes a user. Returns ErrLastAdmin for the last active admin and
	// ErrForbidden when actorID deletes their own account.
	Delete(ctx context.Context, id, actorID uuid.UUID) error
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
}

type userService struct {
	repo     repositories.UserRepository
	settings SettingsService
	scopes   database.ScopeProvider
	tokens   *auth.TokenIssuer
	limiter  auth.LoginLimiter
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(
	repo repositories.UserRepository,
	settings SettingsService,
	scopes database.ScopeProvider,
	tokens *auth.TokenIssuer,
	limiter auth.LoginLimiter,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) UserService {
	return &userService{
		repo:     repo,
		settings: settings,
		scopes:   scopes,
		tokens:   tokens,
		limiter:  limiter,
		auditor:  auditor,
		logger:   logger.Named("users"),
	}
}

var _ UserService = (*userService)(nil)

// withSystemScope runs fn with a system scope unless ctx already carries one.
func withSystemScope(ctx context.Context, scopes database.ScopeProvider, fn func(context.Context) error) error {
	if _, ok := database.GetScope(ctx); ok {
		return fn(ctx)
	}
	scoped, cleanup, err := scopes.WithScope(ctx, uuid.Nil)
	if err != nil {
		return fmt.Errorf("open system scope: %w", err)
	}
	defer cleanup()
	return fn(scoped)
}

func principalOf(u *models.User) auth.Principal {
	return auth.Principal{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Email:    u.Email,
	}
}

func (s *userService) ResolveByID(ctx context.Context, userID uuid.UUID) (auth.Principal, error) {
	var user *models.User
	err := withSystemScope(ctx, s.scopes, func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetByID(ctx, userID)
		return err
	})
	return s.activePrincipal(user, err)
}

func (s *userService) ResolveByEmail(ctx context.Context, email string) (auth.Principal, error) {
	var user *models.User
	err := withSystemScope(ctx, s.scopes, func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetByEmail(ctx, email)
		return err
	})
	return s.activePrincipal(user, err)
}

func (s *userService) activePrincipal(user *models.User, err error) (auth.Principal, error) {
	if errors.Is(err, apperrors.ErrNotFound) || (err == nil && !user.IsActive) {
		return auth.Principal{}, auth.ErrInactiveUser
	}
	if err != nil {
		return auth.Principal{}, err
	}
	return principalOf(user), nil
}

func (s *userService) Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	settings, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, err
	}

	remaining, err := s.limiter.LockedFor(ctx, username)
	if err != nil {
		s.logger.Warn("Login limiter unavailable", zap.Error(err))
	}
	if remaining > 0 {
		s.auditor.LogLoginFailure(ctx, username, "account locked", clientIP)
		return nil, fmt.Errorf("%w: try again in %s", apperrors.ErrAccountLocked, remaining.Round(time.Minute))
	}

	var user *models.User
	err = withSystemScope(ctx, s.scopes, func(ctx context.Context) error {
		u, err := s.repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
			return apperrors.ErrInvalidCredentials
		}
		user = u
		return s.repo.RecordLogin(ctx, u.ID, clientIP)
	})
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidCredentials) {
		return nil, s.loginFailed(ctx, username, clientIP, settings)
	}
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		s.logger.Warn("Failed to reset login failures", zap.Error(err))
	}

	principal := principalOf(user)
	token, expiresAt, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("client_ip", clientIP))
	return &LoginResult{
		User:          user,
		Principal:     principal,
		Token:         token,
		ExpiresAt:     expiresAt,
		SessionMaxAge: settings.SessionTimeoutMinutes * 60,
	}, nil
}

func (s *userService) loginFailed(ctx context.Context, username, clientIP string, settings *models.SystemSettings) error {
	locked, err := s.limiter.RegisterFailure(ctx, username, settings.MaxLoginAttempts, settings.LockoutDuration())
	if err != nil {
		s.logger.Warn("Failed to count login failure", zap.Error(err))
	}
	if locked {
		s.auditor.LogAccountLocked(ctx, username, settings.LockoutDuration(), clientIP)
		return apperrors.ErrAccountLocked
	}
	s.auditor.LogLoginFailure(ctx, username, "invalid credentials", clientIP)
	return apperrors.ErrInvalidCredentials
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}

func (s *userService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = models.RoleSalesRep
	}
	if !models.IsValidRole(role) {
		return nil, apperrors.ErrInvalidRole
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		Department:   req.Department,
		EmployeeID:   blankToNil(req.EmployeeID),
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	return user, nil
}

func (s *userService) Update(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	demoting := user.IsAdmin() &&
		((req.Role != nil && *req.Role != models.RoleAdmin) || (req.IsActive != nil && !*req.IsActive))
	if demoting {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			return nil, apperrors.ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Department != nil {
		user.Department = *req.Department
	}
	if req.EmployeeID != nil {
		user.EmployeeID = blankToNil(req.EmployeeID)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if req.Password != nil {
		if err := s.setPassword(ctx, id, *req.Password); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	if id == actorID {
		return fmt.Errorf("%w: cannot delete your own account", apperrors.ErrForbidden)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() && user.IsActive {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

// ensureOtherAdmin fails when removing one admin would leave none.
func (s *userService) ensureOtherAdmin(ctx context.Context) error {
	n, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperrors.ErrLastAdmin
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return apperrors.ErrInvalidCredentials
	}
	return s.setPassword(ctx, id, next)
}

func (s *userService) setPassword(ctx context.Context, id uuid.UUID, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}

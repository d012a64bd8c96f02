package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidRole        = errors.New("invalid role")
	ErrLastAdmin          = errors.New("cannot remove last admin")
	ErrAIDisabled         = errors.New("ai features are disabled")
	ErrTokenLimitReached  = errors.New("daily token limit reached")
	ErrAlreadyProcessing  = errors.New("already processing")
	ErrNotReady           = errors.New("resource is not ready")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMaintenance        = errors.New("system under maintenance")
	ErrCredentialsKey     = errors.New("stored secret was encrypted with a different key")
)

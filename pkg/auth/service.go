package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingAuthorization       = errors.New("missing authorization")
	ErrInvalidAuthorizationFormat = errors.New("invalid authorization header format")
	ErrInvalidToken               = errors.New("invalid token")
	ErrInactiveUser               = errors.New("user is inactive or does not exist")
)

// PrincipalResolver maps token subjects and SSO emails to active local users.
// Implementations return ErrInactiveUser for unknown or deactivated accounts.
type PrincipalResolver interface {
	ResolveByID(ctx context.Context, userID uuid.UUID) (Principal, error)
	ResolveByEmail(ctx context.Context, email string) (Principal, error)
}

// AuthService authenticates HTTP requests.
type AuthService interface {
	// ValidateRequest authenticates the request by session cookie, token cookie
	// or Authorization header, in that order. Returns the claims and the raw
	// token ("" for session authentication).
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	tokens   *TokenIssuer
	sessions *SessionStore
	external ExternalValidator
	resolver PrincipalResolver
	logger   *zap.Logger
}

// NewAuthService creates an AuthService. external and resolver may be nil;
// without a resolver SSO tokens are rejected and local claims are trusted as issued.
func NewAuthService(tokens *TokenIssuer, sessions *SessionStore, external ExternalValidator, resolver PrincipalResolver, logger *zap.Logger) AuthService {
	return &authService{
		tokens:   tokens,
		sessions: sessions,
		external: external,
		resolver: resolver,
		logger:   logger.Named("auth"),
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	ctx := r.Context()

	if s.sessions != nil {
		if p, err := s.sessions.Load(r); err == nil {
			claims, err := s.refresh(ctx, p)
			if err != nil {
				return nil, "", err
			}
			return claims, "", nil
		}
	}

	token, err := extractToken(r)
	if err != nil {
		return nil, "", err
	}

	claims, err := s.validateToken(ctx, token)
	if err != nil {
		s.logger.Debug("Token rejected", zap.Error(err))
		return nil, "", err
	}
	return claims, token, nil
}

func (s *authService) validateToken(ctx context.Context, token string) (*Claims, error) {
	issuer, err := issuerOf(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if issuer == s.tokens.Issuer() {
		claims, err := s.tokens.Validate(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if s.resolver == nil {
			return claims, nil
		}
		userID, _ := uuid.Parse(claims.Subject)
		p, err := s.resolver.ResolveByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		refreshed := ClaimsFor(p, issuer)
		refreshed.RegisteredClaims = claims.RegisteredClaims
		return refreshed, nil
	}

	if s.external == nil || !s.external.Accepts(issuer) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIssuer, issuer)
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("%w: no user resolver for external tokens", ErrInvalidToken)
	}

	external, err := s.external.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p, err := s.resolver.ResolveByEmail(ctx, external.Email)
	if err != nil {
		return nil, err
	}
	claims := ClaimsFor(p, issuer)
	claims.ExpiresAt = external.ExpiresAt
	return claims, nil
}

// refresh re-reads the user behind a session so role changes and deactivation apply immediately.
func (s *authService) refresh(ctx context.Context, p Principal) (*Claims, error) {
	if s.resolver != nil {
		current, err := s.resolver.ResolveByID(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		p = current
	}
	return ClaimsFor(p, s.tokens.Issuer()), nil
}

// extractToken reads the token from the token cookie, then the Authorization header.
func extractToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthorizationFormat
	}
	return strings.TrimSpace(token), nil
}

var _ AuthService = (*authService)(nil)

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnknownIssuer is returned when a token names an issuer with no configured JWKS endpoint.
var ErrUnknownIssuer = errors.New("unauthorized issuer")

// ExternalValidator validates tokens minted by an external identity provider.
type ExternalValidator interface {
	// Accepts reports whether the issuer has a configured key set.
	Accepts(issuer string) bool
	// ValidateToken verifies the token signature and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// JWKSClient validates SSO tokens using JWKS (JSON Web Key Set) endpoints.
// Only tokens from whitelisted issuers are accepted.
type JWKSClient struct {
	endpoints map[string]keyfunc.Keyfunc
}

// NewJWKSClient fetches the key sets of every configured issuer.
// endpoints maps issuer to JWKS URL. An empty map yields a client that accepts nothing.
func NewJWKSClient(ctx context.Context, endpoints map[string]string) (*JWKSClient, error) {
	client := &JWKSClient{endpoints: make(map[string]keyfunc.Keyfunc, len(endpoints))}

	for issuer, jwksURL := range endpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}

	return client, nil
}

// Accepts reports whether issuer has a configured JWKS endpoint.
func (c *JWKSClient) Accepts(issuer string) bool {
	_, ok := c.endpoints[issuer]
	return ok
}

// ValidateToken verifies the RSA or ECDSA signature using the issuer's public keys.
func (c *JWKSClient) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}

		jwks, exists := c.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIssuer, claims.Issuer)
		}
		return jwks.KeyfuncCtx(ctx)(token)
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.Email == "" {
		return nil, errors.New("external token has no email claim")
	}
	return claims, nil
}

var _ ExternalValidator = (*JWKSClient)(nil)

// issuerOf reads the iss claim without verifying the signature, for routing only.
func issuerOf(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, &jwt.RegisteredClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	return token.Claims.GetIssuer()
}

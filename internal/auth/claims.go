package auth

import (
	"context"
	"fmt"

	authlib "github.com/jpvieirapereira/running-club-backend/libs/go/auth"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// Claims mirrors the shared auth claims type for service convenience.
type Claims = authlib.Claims

// Config mirrors the shared auth config.
type Config = authlib.Config

// WithClaims stores the claims in the request context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

// FromContext retrieves claims from context.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}

// PrincipalFromClaims maps token claims onto a domain principal.
func PrincipalFromClaims(claims *Claims) (domain.Principal, error) {
	if claims == nil {
		return domain.Principal{}, fmt.Errorf("%w: missing claims", domain.ErrForbidden)
	}
	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleCoach, domain.RoleCustomer, domain.RoleAdmin:
	default:
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrForbidden, claims.Role)
	}
	return domain.Principal{ID: claims.Subject, Role: role}, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Principal is the resolved identity attached to an authorised request.
type Principal struct {
	User    *User
	Scopes  []string
	TokenID string
}

// Guard runs the access-token validation pipeline for incoming requests:
// decode, revocation check, subject lookup, active check, scope check.
type Guard struct {
	codec       *TokenCodec
	revocations RevocationStore
	users       UserRepository
}

// NewGuard creates an access guard.
func NewGuard(codec *TokenCodec, revocations RevocationStore, users UserRepository) *Guard {
	return &Guard{
		codec:       codec,
		revocations: revocations,
		users:       users,
	}
}

// Authorize validates an access token and checks the required scopes.
// Required scopes are alternatives: holding any one of them authorises
// the request.
//
// The pipeline order matters: token validity before revocation, revocation
// before the database lookup, activity before scopes. Failures map to:
//
//	ErrTokenInvalid / ErrTokenExpired  - 401
//	ErrTokenRevoked                    - 401
//	ErrUserInactive                    - 400
//	ErrNotEnoughPermissions            - 403
//
// Scope checks run against the scopes embedded in the token, so a role
// change takes effect on the next issued token, not on live ones.
func (g *Guard) Authorize(ctx context.Context, token string, requiredScopes []string) (*Principal, error) {
	claims, err := g.codec.Decode(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := g.revocations.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := g.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrTokenInvalid)
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if !ScopesSatisfy(claims.Scopes, requiredScopes) {
		return nil, ErrNotEnoughPermissions
	}

	return &Principal{
		User:    user,
		Scopes:  claims.Scopes,
		TokenID: claims.ID,
	}, nil
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// The scheme comparison is case-insensitive per RFC 7235.
func ExtractBearerToken(header string) (string, error) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrTokenInvalid)
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrTokenInvalid)
	}
	return token, nil
}

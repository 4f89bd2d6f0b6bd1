package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
)

// Issuer is the iss claim stamped on every token this service signs.
const Issuer = "authgate"

// TokenType distinguishes the two token families. Each family is signed
// with its own key, so a token can never validate against the wrong
// decoder even if the type claim were forged.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token presented on API requests.
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh is a long-lived token exchanged for new pairs.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims extends the JWT registered claims with authgate-specific fields.
//
// Subject carries the username. Scopes are embedded on access tokens only;
// refresh tokens stay scope-free so a refresh re-reads the user's current
// grants from the database.
type Claims struct {
	jwt.RegisteredClaims
	Type   TokenType `json:"type"`
	Scopes []string  `json:"scopes,omitempty"`
}

// TokenCodec signs and validates JWTs for both token families.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the codec is immutable
//     after construction.
type TokenCodec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

// NewTokenCodec creates a codec from the validated JWT configuration.
func NewTokenCodec(cfg config.JWTConfig) *TokenCodec {
	return &TokenCodec{
		accessKey:  []byte(cfg.AccessKey),
		refreshKey: []byte(cfg.RefreshKey),
		accessTTL:  cfg.AccessTokenDuration(),
		refreshTTL: cfg.RefreshTokenDuration(),
		leeway:     cfg.ClockSkewLeeway,
	}
}

// Issue creates a signed token of the given type for a username.
//
// The token carries iat and nbf set to now, exp set to now plus the
// family's TTL, a fresh UUID as jti, and the scopes (access tokens only).
//
// Returns the compact serialisation and the claims that were signed.
func (c *TokenCodec) Issue(username string, typ TokenType, scopes []string) (string, *Claims, error) {
	key, ttl, err := c.keyFor(typ)
	if err != nil {
		return "", nil, err
	}

	if typ != TokenTypeAccess {
		scopes = nil // scopes only ride on access tokens
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Type:   typ,
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", nil, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, claims, nil
}

// Decode validates a token against the expected type's key and returns
// its claims.
//
// It checks the signature, the signing method (HS384 only), expiry
// presence and not-before with the configured leeway, and that the
// embedded type claim matches. Expired tokens return ErrTokenExpired;
// every other failure (including a missing exp claim) returns
// ErrTokenInvalid.
func (c *TokenCodec) Decode(tokenString string, typ TokenType) (*Claims, error) {
	key, _, err := c.keyFor(typ)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS384.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Type != typ {
		return nil, fmt.Errorf("%w: wrong token type", ErrTokenInvalid)
	}
	// WithExpirationRequired enforces this at parse time; keep the guard so
	// revocation bookkeeping can always read ExpiresAt.Time.
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}

	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// keyFor returns the signing key and TTL for a token type.
func (c *TokenCodec) keyFor(typ TokenType) ([]byte, time.Duration, error) {
	switch typ {
	case TokenTypeAccess:
		return c.accessKey, c.accessTTL, nil
	case TokenTypeRefresh:
		return c.refreshKey, c.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown token type %q", ErrTokenInvalid, typ)
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/halcyonlabs/authgate/internal/infrastructure/logging"
)

// Service implements the credential and token lifecycle operations:
// registration, login, token rotation, and logout.
//
// It deliberately does not know about HTTP. Handlers translate its
// sentinel errors into status codes.
type Service struct {
	users       UserRepository
	rbac        RBACRepository
	codec       *TokenCodec
	revocations RevocationStore
	logger      *logging.Logger
}

// NewService creates the auth service.
func NewService(users UserRepository, rbac RBACRepository, codec *TokenCodec, revocations RevocationStore, logger *logging.Logger) *Service {
	return &Service{
		users:       users,
		rbac:        rbac,
		codec:       codec,
		revocations: revocations,
		logger:      logger.With("component", "auth"),
	}
}

// Register creates a new user account with a hashed password. The active
// flag is the caller's activation policy: accounts created inactive never
// exist in an active state, so there is no window in which they could log in.
//
// Username and email formats are validated here; uniqueness is enforced
// by the repository (ErrUsernameExists / ErrEmailExists).
func (s *Service) Register(ctx context.Context, username, email, fullName, password string, active bool) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: invalid username format", ErrInvalidCredentials)
	}
	if !IsValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidCredentials)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidCredentials)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hash,
		IsActive:       active,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", username, "user_id", user.ID, "active", active)
	return user, nil
}

// Authenticate verifies a username/password pair.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials
// so a caller cannot probe which usernames exist. Inactive accounts are
// reported distinctly: the credentials were right, the account is not.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a comparable amount of time so the miss is not
			// observable through response latency.
			VerifyPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, user.HashedPassword) {
		s.logger.Warn("failed login attempt", "username", username)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// dummyHash is a throwaway bcrypt hash used to equalise timing when the
// username does not exist. The plaintext is irrelevant.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// IssuePair creates a new access/refresh token pair for a user.
// The access token embeds the user's effective scopes at issue time.
func (s *Service) IssuePair(ctx context.Context, user *User) (*TokenPair, error) {
	scopes, err := s.rbac.EffectiveScopes(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	access, _, err := s.codec.Issue(user.Username, TokenTypeAccess, scopes)
	if err != nil {
		return nil, err
	}

	refresh, _, err := s.codec.Issue(user.Username, TokenTypeRefresh, nil)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerTokenType,
	}, nil
}

// Login authenticates and issues a token pair in one step.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", "username", username)
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked for the
// remainder of its lifetime and a fresh pair is issued.
//
// Presenting the same refresh token twice returns ErrTokenRevoked on the
// second attempt, which is the replay signal.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		s.logger.Warn("refresh token replay detected", "username", claims.Subject, "jti", claims.ID)
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrTokenInvalid)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// Revoke the old token before issuing the new pair. If issuing fails
	// the client retries with a dead token and must log in again — safer
	// than leaving a rotated token alive.
	if err := s.revocations.Record(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("revoking rotated token: %w", err)
	}

	pair, err := s.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token refreshed", "username", user.Username)
	return pair, nil
}

// Logout revokes a refresh token. Logging out with an already-revoked
// token succeeds: the desired state is reached either way.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Decode(refreshToken, TokenTypeRefresh)
	if err != nil {
		// An expired token needs no revocation entry.
		if errors.Is(err, ErrTokenExpired) {
			return nil
		}
		return err
	}

	if err := s.revocations.Record(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	s.logger.Info("logout", "username", claims.Subject)
	return nil
}

// ChangePassword verifies the current password and sets a new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(currentPassword, user.HashedPassword) {
		return ErrInvalidCredentials
	}
	if newPassword == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidCredentials)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "username", user.Username)
	return nil
}

// EffectiveScopes exposes scope resolution for handlers that need to show
// a user their grants (e.g. the /auth/me endpoint).
func (s *Service) EffectiveScopes(ctx context.Context, userID int64) ([]string, error) {
	return s.rbac.EffectiveScopes(ctx, userID)
}

// compile-time interface checks for the revocation stores.
var (
	_ RevocationStore = (*MemoryRevocationStore)(nil)
	_ RevocationStore = (*RedisRevocationStore)(nil)
)

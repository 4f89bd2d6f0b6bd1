package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// emailPattern is a deliberately loose check: one @, non-empty local
// part and domain with a dot. Deliverability is the mail server's problem.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// IsValidEmail checks if an email address is plausibly well-formed.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// User represents an account that can authenticate and hold roles.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name,omitempty"`
	HashedPassword string    `json:"-"` // never serialised
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is a named grouping of permissions assignable to users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is a named capability. Its name doubles as the scope string
// carried in access tokens (e.g. "role:read", "user:update").
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TokenPair is the response body for login and refresh operations.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// BearerTokenType is the token_type value returned with every pair.
const BearerTokenType = "bearer"

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserInactive         = errors.New("user account is inactive")
	ErrUsernameExists       = errors.New("username already exists")
	ErrEmailExists          = errors.New("email already registered")
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleExists           = errors.New("role already exists")
	ErrPermissionNotFound   = errors.New("permission not found")
	ErrPermissionExists     = errors.New("permission already exists")
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenRevoked         = errors.New("token has been revoked")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrNotEnoughPermissions = errors.New("not enough permissions")
	ErrRegistrationClosed   = errors.New("open registration is disabled")
)

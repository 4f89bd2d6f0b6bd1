package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for password hashing. Cost 12 lands
// around 250ms per hash on current hardware, which is the point.
const bcryptCost = 12

// HashPassword hashes a plaintext password using bcrypt.
// The returned string embeds the salt and cost, so it is self-contained.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a bcrypt hash.
// It returns false for a mismatch and for a malformed or truncated hash;
// callers never learn which, so both collapse into ErrInvalidCredentials.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

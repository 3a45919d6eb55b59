// Package auth covers credential hashing and the derived identity fields
// the client protocol expects.
package auth

import (
	"crypto/md5"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/osudroid-server/internal/domain"
)

const bcryptCost = 10

// HashPassword hashes a plaintext password for storage
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against the stored hash
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.ErrWrongPassword
	}
	return nil
}

// EmailMD5 derives the avatar hash the client builds gravatar URLs from
func EmailMD5(email string) string {
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

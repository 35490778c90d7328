package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// HashRefreshToken hashes a refresh token before it is persisted so a
// database leak does not expose live credentials. Tokens exceed bcrypt's
// 72-byte input limit, so they are digested with SHA-256 first.
func HashRefreshToken(token string) (string, error) {
	digest := sha256.Sum256([]byte(token))
	hashed, err := bcrypt.GenerateFromPassword(digest[:], bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckRefreshToken reports whether the presented token matches the stored hash.
func CheckRefreshToken(hashed, token string) bool {
	digest := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(hashed), digest[:]) == nil
}

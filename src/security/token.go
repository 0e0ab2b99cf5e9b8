package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyToken = errors.New("token is empty")

// HashToken returns the bcrypt hash to store in INTERNAL_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareToken reports whether token matches hash. An empty hash never matches.
func CompareToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

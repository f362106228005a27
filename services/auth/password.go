package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	cryptPrefix = "{CRYPT}"
	bcryptCost  = 10
)

// HashPassword returns a "{CRYPT}"-prefixed bcrypt hash, the format the mail
// server reads from the mailbox table.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return cryptPrefix + string(hash), nil
}

// VerifyPassword reports whether plain matches hash, with or without the
// "{CRYPT}" prefix.
func VerifyPassword(plain, hash string) bool {
	hash = strings.TrimPrefix(hash, cryptPrefix)
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

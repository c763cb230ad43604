package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned on any username/password mismatch. Callers
// get no hint about which part was wrong.
var ErrBadCredentials = errors.New("bad credentials")

// Credentials holds the single admin account. The password is stored as a
// bcrypt hash; a plaintext fallback is accepted so local setups can skip
// hashing.
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt hash, or plaintext if not a bcrypt string
}

// Check validates a login attempt.
func (c Credentials) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1

	var passOK bool
	if isBcryptHash(c.PasswordHash) {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(c.PasswordHash), []byte(password)) == 1
	}

	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return len(s) > 4 && s[0] == '$' && (s[1] == '2')
}

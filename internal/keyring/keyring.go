// Package keyring keeps habitflow secrets in the OS keyring: the current
// session token, the token signing key and the PostgreSQL password.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitflow/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the key
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(user string) (string, error) {
	secret, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

func set(user, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", user)
	}
	if err := keyring.Set(constants.AppName, user, secret); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", user, err)
	}
	return nil
}

func del(user string) error {
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", user, err)
	}
	return nil
}

// Token returns the persisted session token.
func Token() (string, error) {
	return get(constants.DefaultKeyringUser)
}

func SetToken(tok string) error {
	return set(constants.DefaultKeyringUser, tok)
}

// ClearToken removes the session token. A missing token is not an error.
func ClearToken() error {
	if err := del(constants.DefaultKeyringUser); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// SigningKey returns the session signing key, generating and storing a
// random 32-byte key on first use.
func SigningKey() ([]byte, error) {
	secret, err := get(constants.SigningKeyUser)
	if err == nil {
		return hex.DecodeString(secret)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	if err := set(constants.SigningKeyUser, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// DatabasePassword returns the PostgreSQL password kept out of the
// connection string.
func DatabasePassword() (string, error) {
	return get(constants.DatabaseKeyUser)
}

func SetDatabasePassword(pw string) error {
	return set(constants.DatabaseKeyUser, pw)
}

func DeleteDatabasePassword() error {
	return del(constants.DatabaseKeyUser)
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

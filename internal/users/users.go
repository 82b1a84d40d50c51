// Package users is the account directory: credentials and game memberships.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// MaxUsernameLength bounds usernames, in runes.
const MaxUsernameLength = 64

// Directory looks up and authenticates users.
type Directory interface {
	// Authenticate returns the user whose credentials match, or an
	// unauthenticated error. Unknown names and wrong passwords look the same.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// Get returns the user with its current game memberships.
	Get(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, username, password string) (*models.User, error)
}

var errBadCredentials = apperr.Unauthenticatedf("invalid username or password")

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return apperr.Invalidf("username must not be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperr.Invalidf("username exceeds %d characters", MaxUsernameLength)
	}
	if password == "" {
		return apperr.Invalidf("password must not be empty")
	}
	return nil
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Invalidf("password too long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errBadCredentials
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

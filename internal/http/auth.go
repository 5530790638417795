package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"andvaranaut/internal/storage"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike, so responses do not leak which of the two failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

const defaultTokenTTL = 30 * 24 * time.Hour

// Authenticator issues and verifies bearer tokens backed by the repository.
type Authenticator struct {
	repo     Repository
	tokenTTL time.Duration
}

func NewAuthenticator(repo Repository, tokenTTL time.Duration) *Authenticator {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Authenticator{repo: repo, tokenTTL: tokenTTL}
}

// Register creates an account with a bcrypt-hashed password.
func (a *Authenticator) Register(ctx context.Context, username, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return a.repo.CreateUser(ctx, username, string(hash))
}

// Authenticate verifies a username and password and issues a fresh token.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, time.Time, error) {
	userID, hash, err := a.repo.UserCredentials(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(a.tokenTTL)
	if err := a.repo.CreateToken(ctx, userID, token, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("store token: %w", err)
	}

	slog.InfoContext(ctx, "Token issued", "user_id", userID, "expires_at", expiresAt)
	return token, expiresAt, nil
}

// Verify resolves a bearer token to a user id.
func (a *Authenticator) Verify(ctx context.Context, token string) (int64, error) {
	userID, err := a.repo.UserIDForToken(ctx, token, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("verify token: %w", err)
	}
	return userID, nil
}

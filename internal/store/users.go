package store

import (
	"context"
	"fmt"

	"github.com/messenger-chat/messenger/internal/model"
)

// CreateUser inserts a new account with the given password hash. Returns
// model.ErrAlreadyExists when the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	user := &model.User{Username: username}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, created_at, last_active_at`,
		username, passwordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.LastActiveAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// UserByUsername returns the user and its password hash for credential
// checks. Returns model.ErrNotFound for unknown usernames.
func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, string, error) {
	user := &model.User{}
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, last_active_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &hash, &user.CreatedAt, &user.LastActiveAt)
	if err != nil {
		if isNoRows(err) {
			return nil, "", model.ErrNotFound
		}
		return nil, "", fmt.Errorf("error loading user %q: %w", username, err)
	}
	return user, hash, nil
}

// GetUser returns a user by identity. Returns model.ErrNotFound when absent.
func (s *Store) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, created_at, last_active_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.CreatedAt, &user.LastActiveAt)
	if err != nil {
		if isNoRows(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error loading user %d: %w", userID, err)
	}
	return user, nil
}

// TouchLastActive bumps the user's last_active_at to now.
func (s *Store) TouchLastActive(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET last_active_at = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("error updating last_active_at for user %d: %w", userID, err)
	}
	return nil
}

// Package auth implements account registration, login, and the session
// tokens used by both the JSON API and the realtime endpoint. Tokens are
// HS256 JWTs carrying the user identity; passwords are stored as bcrypt
// hashes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cristalhq/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/messenger-chat/messenger/internal/model"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so the two are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken covers malformed, forged, and expired tokens, and
	// tokens whose user no longer exists.
	ErrInvalidToken = errors.New("invalid token")
)

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, string, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	TouchLastActive(ctx context.Context, userID int64) error
}

// sessionClaims is the token payload: the user identity plus standard
// issued-at/expiry claims.
type sessionClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and validates session tokens and manages account
// credentials.
type Service struct {
	users    UserStore
	signer   jwt.Signer
	verifier jwt.Verifier
	tokenTTL time.Duration
	log      zerolog.Logger
}

// NewService builds the auth service. The HMAC secret must be non-empty;
// there is no unsigned-token mode.
func NewService(users UserStore, hmacSecret string, tokenTTL time.Duration, logger zerolog.Logger) (*Service, error) {
	if hmacSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	signer, err := jwt.NewSignerHS(jwt.HS256, []byte(hmacSecret))
	if err != nil {
		return nil, fmt.Errorf("error creating token signer: %w", err)
	}
	verifier, err := jwt.NewVerifierHS(jwt.HS256, []byte(hmacSecret))
	if err != nil {
		return nil, fmt.Errorf("error creating token verifier: %w", err)
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		users:    users,
		signer:   signer,
		verifier: verifier,
		tokenTTL: tokenTTL,
		log:      logger.With().Str("component", "auth").Logger(),
	}, nil
}

// Register creates a new account and returns the user together with a fresh
// session token. Returns model.ErrAlreadyExists when the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, token, nil
}

// Login verifies the credentials, bumps last_active_at, and returns the user
// with a fresh session token.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, hash, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := s.users.TouchLastActive(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last_active_at on login")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Validate resolves a session token to its user. It verifies the signature
// and expiry, loads the user, and bumps last_active_at. Any failure maps to
// ErrInvalidToken.
func (s *Service) Validate(ctx context.Context, token string) (*model.User, error) {
	parsed, err := jwt.Parse([]byte(token), s.verifier)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var claims sessionClaims
	if err := json.Unmarshal(parsed.Claims(), &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.IsValidAt(time.Now()) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.users.TouchLastActive(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last_active_at on token validation")
	}
	return user, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewBuilder(s.signer).Build(claims)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return token.String(), nil
}

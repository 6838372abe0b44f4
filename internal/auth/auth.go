// Package auth issues and checks session tokens for the single-owner
// dashboard. Passwords are bcrypt hashes; sessions are HS256 JWTs whose jti
// can be revoked before expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"daisycash/internal/core"
	"daisycash/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12
	issuer     = "daisycash"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"principal"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	users   store.UserStore
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked *cache.Cache
}

func NewService(users store.UserStore, secret string, ttl time.Duration) *Service {
	return &Service{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: cache.New(ttl, 2*ttl),
	}
}

// WithClock overrides the time source used to stamp and verify tokens.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the credentials and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Login for unknown user", "email", email)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Login with wrong password", "user_id", u.ID)
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) issue(u core.User) (Session, error) {
	now := s.now()
	p := Principal{
		UserID:    u.ID,
		Email:     u.Email,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.SessionID,
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: p.ExpiresAt, Principal: p}, nil
}

// Authenticate validates a session token and returns its principal.
func (s *Service) Authenticate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if _, revoked := s.revoked.Get(c.ID); revoked {
		return Principal{}, fmt.Errorf("%w: session revoked", ErrUnauthenticated)
	}
	return Principal{
		UserID:    c.Subject,
		Email:     c.Email,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// IsAuthenticated reports whether token is a live session.
func (s *Service) IsAuthenticated(token string) bool {
	_, err := s.Authenticate(token)
	return err == nil
}

// Logout revokes the session until it would have expired anyway.
func (s *Service) Logout(token string) error {
	p, err := s.Authenticate(token)
	if err != nil {
		return err
	}
	remaining := p.ExpiresAt.Sub(s.now())
	if remaining > 0 {
		s.revoked.Set(p.SessionID, struct{}{}, remaining)
	}
	return nil
}

// EnsureUser creates the account when it does not exist yet. It is used to
// bootstrap the owner from configuration.
func (s *Service) EnsureUser(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u, err = s.users.CreateUser(ctx, core.User{Email: email, PasswordHash: hash})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "Bootstrapped user", "user_id", u.ID, "email", u.Email)
	return u, nil
}

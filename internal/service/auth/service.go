package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/prepx/backend/internal/model/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not signed in")
)

// Config tunes token lifetime and hashing cost.
type Config struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// Service is the in-process identity provider: account creation, sign-in
// sessions and bearer token resolution.
type Service struct {
	users    user.Store
	validate *validator.Validate
	tokenTTL time.Duration
	cost     int
	now      func() time.Time
}

// NewService wires the identity provider on top of a user store.
func NewService(users user.Store, cfg Config) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		validate: newValidator(),
		tokenTTL: ttl,
		cost:     cost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks a form against the rules for formType without side effects.
func (s *Service) Validate(formType FormType, form Form) error {
	return validateForm(s.validate, formType, form)
}

// SignUp registers a new account.
func (s *Service) SignUp(ctx context.Context, form Form) (user.User, error) {
	if err := s.Validate(FormSignUp, form); err != nil {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	account := user.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(form.Name),
		Email:        user.NormalizeEmail(form.Email),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, account); err != nil {
		return user.User{}, err
	}

	log.Printf("[auth] account created user=%s", account.ID)
	return account, nil
}

// SignIn verifies credentials and issues a bearer session.
func (s *Service) SignIn(ctx context.Context, form Form) (user.Session, user.User, error) {
	if err := s.Validate(FormSignIn, form); err != nil {
		return user.Session{}, user.User{}, err
	}

	account, err := s.users.FindByEmail(ctx, form.Email)
	if errors.Is(err, user.ErrNotFound) {
		return user.Session{}, user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return user.Session{}, user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(form.Password)); err != nil {
		return user.Session{}, user.User{}, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return user.Session{}, user.User{}, err
	}

	session := user.Session{
		Token:     token,
		UserID:    account.ID,
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.users.CreateSession(ctx, session); err != nil {
		return user.Session{}, user.User{}, fmt.Errorf("store session: %w", err)
	}

	log.Printf("[auth] signed in user=%s", account.ID)
	return session, account, nil
}

// SignOut revokes a bearer token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.users.DeleteSession(ctx, token)
}

// Authenticate resolves the user behind a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.User{}, ErrUnauthenticated
	}

	session, err := s.users.FindSession(ctx, token)
	if errors.Is(err, user.ErrSessionNotFound) {
		return user.User{}, ErrUnauthenticated
	}
	if err != nil {
		return user.User{}, fmt.Errorf("lookup session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.users.DeleteSession(ctx, token); err != nil {
			log.Printf("[auth] failed to drop expired session: %v", err)
		}
		return user.User{}, ErrUnauthenticated
	}

	account, err := s.users.FindByID(ctx, session.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrUnauthenticated
	}
	if err != nil {
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return account, nil
}

// generateToken returns 192 bits of randomness, URL-safe and unpadded.
func generateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Package user implements account registration, login and password reset
// for the dashboard, plus the in-memory session tokens that gate trading
// endpoints.
package user

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Account defaults applied at registration.
const (
	defaultKYCStatus   = "Pending"
	defaultCreditScore = 100
)

var (
	// ErrExists is returned when registering an already-taken mobile.
	ErrExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned on login failure. Deliberately the
	// same for unknown mobile and wrong password.
	ErrInvalidCredentials = errors.New("invalid mobile or password")

	// ErrMobileNotFound is returned when resetting the password of an
	// unknown mobile.
	ErrMobileNotFound = errors.New("mobile number not found")

	// ErrInvalidInput is returned for empty mobile or password.
	ErrInvalidInput = errors.New("mobile and password are required")
)

// Service implements the account operations over a repository and a
// session store.
type Service struct {
	repo     Repository
	sessions *SessionStore
	logger   *slog.Logger
}

// NewService creates a user service.
func NewService(repo Repository, sessions *SessionStore, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		logger:   logger.With("component", "user"),
	}
}

// Register creates a new account. The display name is derived from the
// mobile's last four digits; KYC starts Pending with the default credit
// score.
func (s *Service) Register(mobile, password string) (*User, error) {
	if mobile == "" || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.repo.GetByMobile(mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Mobile:      mobile,
		Password:    string(hash),
		Username:    usernameFor(mobile),
		KYC:         defaultKYCStatus,
		CreditScore: defaultCreditScore,
	}
	if err := s.repo.Create(u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "mobile", mobile, "username", u.Username)
	return u, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(mobile, password string) (string, *User, error) {
	if mobile == "" || password == "" {
		return "", nil, ErrInvalidInput
	}

	u, err := s.repo.GetByMobile(mobile)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := s.sessions.Create(mobile)
	s.logger.Info("user logged in", "mobile", mobile)
	return token, u, nil
}

// ResetPassword replaces the password of an existing account.
func (s *Service) ResetPassword(mobile, newPassword string) error {
	if mobile == "" || newPassword == "" {
		return ErrInvalidInput
	}

	u, err := s.repo.GetByMobile(mobile)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrMobileNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(mobile, string(hash)); err != nil {
		return err
	}

	s.logger.Info("password reset", "mobile", mobile)
	return nil
}

// Authenticate resolves a session token to its mobile.
func (s *Service) Authenticate(token string) (string, bool) {
	return s.sessions.Resolve(token)
}

// Logout revokes a session token.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}

// usernameFor derives the display name from the mobile's last four digits.
func usernameFor(mobile string) string {
	if len(mobile) <= 4 {
		return "User" + mobile
	}
	return "User" + mobile[len(mobile)-4:]
}

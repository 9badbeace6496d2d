// Package service holds the business logic, between the HTTP handlers and
// the repository/auth primitives.
//
//	handler (HTTP) → service (rules) → repository (DB)
//	               ↘ auth (bcrypt, JWT, OAuth)
//
// AuthService is the identity resolver: it decides whether a presented
// credential (password pair or Google profile) identifies a valid, unique
// account, and issues the session token for it. It knows nothing about HTTP
// — no cookies, no status codes, no routers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/budget-tracker/internal/apperror"
	"github.com/sakif/budget-tracker/internal/auth"
	"github.com/sakif/budget-tracker/internal/model"
	"github.com/sakif/budget-tracker/internal/repository"
)

// Password policy for local accounts. The special-character set matches what
// the sign-up form advertises.
const (
	passwordMinLen    = 6
	passwordMaxLen    = 50
	specialCharacters = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
)

// storeTimeout bounds every credential-store round trip so a wedged
// database surfaces as an error instead of holding the request open.
const storeTimeout = 5 * time.Second

// AuthService handles registration, sign-in, and Google identity resolution.
// All dependencies are injected; there is no package-level state.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. Called from the composition root
// in internal/server.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the sanitized account and its freshly issued token, so
// the handler can set the cookie and build the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a local account.
//
// Preconditions: all three fields present, password length within
// [passwordMinLen, passwordMaxLen] and containing at least one special
// character. Violations return ErrValidation naming the field; an existing
// account with the same email returns ErrDuplicate.
//
// There is deliberately no SELECT-before-INSERT: the store's UNIQUE
// constraint decides duplicates, so two concurrent registrations for the
// same email cannot both win.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Provider:     model.ProviderLocal,
		PasswordHash: hash,
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login authenticates a local account by username or email.
//
// Error ladder: unknown identifier → ErrNotFound; account that only
// authenticates via Google → ErrExternalOnly with guidance; failed hash
// verification → ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	if usernameOrEmail == "" || password == "" {
		return nil, apperror.ValidationFailed("usernameOrEmail", "All fields are required")
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	user, err := s.users.GetByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !user.IsLocal() {
		// The account exists but has no password; sending the caller to the
		// provider beats a misleading "invalid credentials".
		return nil, apperror.ExternalOnly("Google")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("failed sign-in attempt", slog.String("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))

	return s.issue(user)
}

// LoginOrRegisterGoogle resolves a Google profile to an account, creating
// one on first sight.
//
// A profile without an email cannot be resolved or deduplicated and is
// rejected. If the email already belongs to a PASSWORD account, the flow is
// refused with ErrDuplicate rather than silently adopting the account:
// controlling a mailbox must not be enough to capture a local account that
// happens to use it. Repeat calls for the same Google identity are
// idempotent and return the same account.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, profile *auth.GoogleUser) (*AuthResult, error) {
	if profile == nil || profile.Email == "" {
		return nil, apperror.ValidationFailed("email", "Google profile did not include an email")
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.IsLocal() {
			return nil, apperror.Duplicate("An account with this email already signs in with a password")
		}
		// Existing Google account — sign them in.

	case isNotFound(err):
		username := profile.Name
		if username == "" {
			username = profile.Email
		}
		user = &model.User{
			Username: username,
			Email:    profile.Email,
			Provider: model.ProviderGoogle,
		}
		if err := s.users.Create(ctx, user); err != nil {
			// A concurrent callback for the same Google account can insert
			// first; treat the constraint clash as "already registered" and
			// fetch the winner.
			if isDuplicate(err) {
				if user, err = s.users.GetByEmail(ctx, profile.Email); err != nil {
					return nil, fmt.Errorf("service/auth: refetching user after create race: %w", err)
				}
			} else {
				return nil, fmt.Errorf("service/auth: creating google user: %w", err)
			}
		} else {
			s.logger.Info("user registered via Google", slog.String("userID", user.ID))
		}

	default:
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))

	return s.issue(user)
}

// GetUserByID returns the sanitized account for an internal id. Used by the
// /api/me handler after the middleware validates the session token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user.Sanitize(), nil
}

// ValidateToken validates a session token and returns the account id it
// asserts. Thin delegation so callers only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	claims, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return claims.Subject, nil
}

// issue mints the session token and pairs it with the sanitized account.
func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user.Sanitize(),
		Token: token,
	}, nil
}

func validateRegistration(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return apperror.ValidationFailed("", "All fields are required")
	}
	if !strings.Contains(email, "@") {
		return apperror.ValidationFailed("email", "Email must be a valid address")
	}
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d-%d chars long", passwordMinLen, passwordMaxLen))
	}
	if !strings.ContainsAny(password, specialCharacters) {
		return apperror.ValidationFailed("password", "Password must contain a special character")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, apperror.ErrDuplicate)
}

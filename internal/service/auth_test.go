package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/budget-tracker/internal/apperror"
	"github.com/sakif/budget-tracker/internal/auth"
	"github.com/sakif/budget-tracker/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. A hand-written
// fake (not a mock framework) keeps the tests readable — the duplicate
// check below mirrors the real store's UNIQUE constraint on email.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to a non-nil error to simulate a store failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Duplicate("User already exists")
		}
	}
	user.ID = fmt.Sprintf("user-fake-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("User does not exist")
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User does not exist")
}

func (f *fakeUserRepo) GetByUsernameOrEmail(ctx context.Context, v string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == v || u.Username == v {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User does not exist")
}

// newTestAuthService wires an AuthService with the fake repo, a fast bcrypt
// cost, and a quiet logger.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	ps := auth.NewPasswordServiceWithCost(4)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, ts, ps, logger)
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "alice", "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == "" {
		t.Error("Register() did not assign an ID")
	}
	if result.Token == "" {
		t.Error("Register() returned an empty token")
	}
	if result.User.PasswordHash != "" {
		t.Error("Register() must strip the password hash before returning the account")
	}
	if result.User.Provider != model.ProviderLocal {
		t.Errorf("Provider = %q, want %q", result.User.Provider, model.ProviderLocal)
	}

	// The stored record keeps the hash; only the returned copy is stripped.
	stored := repo.users[result.User.ID]
	if stored.PasswordHash == "" {
		t.Error("stored record should keep the hash")
	}
	if stored.PasswordHash == "Secret1!" {
		t.Error("stored password must be hashed, not plaintext")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "alice", "a@x.com", "Secret1!"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), "alice2", "a@x.com", "Other2@")
	if !errors.Is(err, apperror.ErrDuplicate) {
		t.Errorf("second Register() with same email: error = %v, want ErrDuplicate", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"missing username", "", "a@x.com", "Secret1!"},
		{"missing email", "alice", "", "Secret1!"},
		{"missing password", "alice", "a@x.com", ""},
		{"email without @", "alice", "not-an-email", "Secret1!"},
		{"no special character", "alice", "a@x.com", "abcdef"},
		{"too short", "alice", "a@x.com", "ab1!"},
		{"too long", "alice", "a@x.com", "a!" + strings.Repeat("b", 60)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.email, tc.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}

	if len(repo.users) != 0 {
		t.Errorf("no accounts should be created on validation failure, got %d", len(repo.users))
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("disk on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "alice", "a@x.com", "Secret1!")
	if err == nil {
		t.Fatal("Register() should surface store failures")
	}
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrDuplicate) {
		t.Errorf("store failure must not be classified as a domain error, got %v", err)
	}
}

// =========================================================================
// Login TESTS
// =========================================================================

func registerAlice(t *testing.T, svc *AuthService) *model.User {
	t.Helper()
	result, err := svc.Register(context.Background(), "alice", "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return result.User
}

func TestLogin_ByEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	created := registerAlice(t, svc)

	result, err := svc.Login(context.Background(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != created.ID {
		t.Errorf("Login() returned user %q, want %q", result.User.ID, created.ID)
	}
	if result.User.PasswordHash != "" {
		t.Error("Login() must strip the password hash")
	}

	// The issued token must verify back to the same account id.
	gotID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if gotID != created.ID {
		t.Errorf("ValidateToken() = %q, want %q", gotID, created.ID)
	}
}

func TestLogin_ByUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerAlice(t, svc)

	if _, err := svc.Login(context.Background(), "alice", "Secret1!"); err != nil {
		t.Fatalf("Login() by username error = %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "nobody@x.com", "Secret1!")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Login() error = %v, want ErrNotFound", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerAlice(t, svc)

	_, err := svc.Login(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Login(context.Background(), "", "pw"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Login() with empty identifier: error = %v, want ErrValidation", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Login() with empty password: error = %v, want ErrValidation", err)
	}
}

func TestLogin_GoogleOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	profile := &auth.GoogleUser{ID: "g-1", Email: "g@x.com", Name: "Google Alice"}
	if _, err := svc.LoginOrRegisterGoogle(context.Background(), profile); err != nil {
		t.Fatalf("LoginOrRegisterGoogle() error = %v", err)
	}

	// Local sign-in against the Google-only account must point to Google,
	// not pretend the password was merely wrong.
	_, err := svc.Login(context.Background(), "g@x.com", "whatever!")
	if !errors.Is(err, apperror.ErrExternalOnly) {
		t.Fatalf("Login() error = %v, want ErrExternalOnly", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected an *AppError with guidance")
	}
	if appErr.Message == "" {
		t.Error("ExternalOnly error should carry a user-facing message")
	}
}

// =========================================================================
// LoginOrRegisterGoogle TESTS
// =========================================================================

func TestLoginOrRegisterGoogle_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	profile := &auth.GoogleUser{ID: "g-42", Email: "carol@gmail.com", Name: "Carol"}
	result, err := svc.LoginOrRegisterGoogle(context.Background(), profile)
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() error = %v", err)
	}

	if result.User.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", result.User.Provider, model.ProviderGoogle)
	}
	if result.User.Username != "Carol" {
		t.Errorf("Username = %q, want the profile display name", result.User.Username)
	}
	if result.Token == "" {
		t.Error("LoginOrRegisterGoogle() returned an empty token")
	}
}

func TestLoginOrRegisterGoogle_Idempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	profile := &auth.GoogleUser{ID: "g-42", Email: "carol@gmail.com", Name: "Carol"}

	first, err := svc.LoginOrRegisterGoogle(context.Background(), profile)
	if err != nil {
		t.Fatalf("first LoginOrRegisterGoogle() error = %v", err)
	}
	second, err := svc.LoginOrRegisterGoogle(context.Background(), profile)
	if err != nil {
		t.Fatalf("second LoginOrRegisterGoogle() error = %v", err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("repeat resolution returned id %q, want %q", second.User.ID, first.User.ID)
	}
	if len(repo.users) != 1 {
		t.Errorf("repeat resolution created %d rows, want 1", len(repo.users))
	}
}

func TestLoginOrRegisterGoogle_NoEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.LoginOrRegisterGoogle(context.Background(), &auth.GoogleUser{ID: "g-1", Name: "No Email"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("LoginOrRegisterGoogle() without email: error = %v, want ErrValidation", err)
	}
}

func TestLoginOrRegisterGoogle_RejectsLocalAccountTakeover(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerAlice(t, svc)

	// Same email, arriving through the Google callback: refuse, don't adopt.
	profile := &auth.GoogleUser{ID: "g-7", Email: "a@x.com", Name: "Alice G"}
	_, err := svc.LoginOrRegisterGoogle(context.Background(), profile)
	if !errors.Is(err, apperror.ErrDuplicate) {
		t.Errorf("LoginOrRegisterGoogle() against a local account: error = %v, want ErrDuplicate", err)
	}
	if len(repo.users) != 1 {
		t.Errorf("rejected resolution must not create a row, have %d", len(repo.users))
	}
}

func TestLoginOrRegisterGoogle_EmptyNameFallsBackToEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	profile := &auth.GoogleUser{ID: "g-9", Email: "nameless@gmail.com"}
	result, err := svc.LoginOrRegisterGoogle(context.Background(), profile)
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() error = %v", err)
	}
	if result.User.Username != "nameless@gmail.com" {
		t.Errorf("Username = %q, want the email fallback", result.User.Username)
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID_StripsHash(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	created := registerAlice(t, svc)

	got, err := svc.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.PasswordHash != "" {
		t.Error("GetUserByID() must strip the password hash")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.GetUserByID(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

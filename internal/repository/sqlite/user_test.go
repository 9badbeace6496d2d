package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/budget-tracker/internal/apperror"
	"github.com/sakif/budget-tracker/internal/model"
)

// newTestDB returns a *DB backed by an in-memory database that is torn down
// with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a local account and fails the test on error.
func createTestUser(t *testing.T, db *DB, username, email string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        email,
		Provider:     model.ProviderLocal,
		PasswordHash: "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefake",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "alice", "alice@example.com")

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Create() did not set user.UpdatedAt")
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "alice", "alice@example.com")

	duplicate := &model.User{
		Username: "different-name",
		Email:    "alice@example.com", // same email
		Provider: model.ProviderLocal,
	}
	err := db.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have returned an error for a duplicate email")
	}
	if !errors.Is(err, apperror.ErrDuplicate) {
		t.Errorf("Create() duplicate error = %v, want ErrDuplicate", err)
	}
}

func TestCreate_DuplicateUsernameAllowed(t *testing.T) {
	db := newTestDB(t)

	// Usernames are not unique — only emails are.
	createTestUser(t, db, "alice", "alice@example.com")
	createTestUser(t, db, "alice", "alice2@example.com")
}

func TestCreate_GoogleAccountWithoutHash(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username: "Alice Google",
		Email:    "alice@gmail.com",
		Provider: model.ProviderGoogle,
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetByEmail(context.Background(), "alice@gmail.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", got.Provider, model.ProviderGoogle)
	}
	if got.PasswordHash != "" {
		t.Errorf("PasswordHash = %q, want empty for a Google account", got.PasswordHash)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetByID(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "bob", "bob@example.com")

	got, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "bob@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "bob@example.com")
	}
	if got.PasswordHash == "" {
		t.Error("repository must return the stored hash; stripping happens in the service layer")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByUsernameOrEmail(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "carol", "carol@example.com")

	byEmail, err := db.GetByUsernameOrEmail(context.Background(), "carol@example.com")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail(email) error = %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("lookup by email returned id %q, want %q", byEmail.ID, created.ID)
	}

	byUsername, err := db.GetByUsernameOrEmail(context.Background(), "carol")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail(username) error = %v", err)
	}
	if byUsername.ID != created.ID {
		t.Errorf("lookup by username returned id %q, want %q", byUsername.ID, created.ID)
	}
}

func TestGetByUsernameOrEmail_ExactMatchOnly(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "dave", "dave@example.com")

	if _, err := db.GetByUsernameOrEmail(context.Background(), "dav"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("prefix input should not match, got err = %v", err)
	}
}

func TestGetByUsernameOrEmail_EmailTakesPrecedence(t *testing.T) {
	db := newTestDB(t)

	// One account's username equals another account's email.
	byEmail := createTestUser(t, db, "erin", "shared@example.com")
	createTestUser(t, db, "shared@example.com", "other@example.com")

	got, err := db.GetByUsernameOrEmail(context.Background(), "shared@example.com")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail() error = %v", err)
	}
	if got.ID != byEmail.ID {
		t.Errorf("email match should win, got id %q, want %q", got.ID, byEmail.ID)
	}
}

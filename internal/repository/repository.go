// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/budget-tracker/internal/model"
)

// UserRepository is the credential store. Implementations own the account
// records exclusively: the service layer reads and inserts through this
// interface and never mutates rows in place.
//
// Create must enforce email uniqueness itself (a store-level constraint,
// not a check-then-insert) and return apperror.ErrDuplicate on a clash, so
// two concurrent sign-ups for the same email can never both succeed.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByUsernameOrEmail matches exact string equality on either column,
	// which is what the sign-in form submits.
	GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error)
}

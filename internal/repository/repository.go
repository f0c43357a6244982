package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/terrasense/agrigate/internal/domain"
)

// Sentinel errors shared by every store implementation.
var (
	ErrEmailTaken = errors.New("email already registered")
	ErrNotFound   = errors.New("user not found")
)

// UserRepository exposes persistence for user credentials. Create must be
// atomic with respect to the email uniqueness check.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// NewID allocates an opaque identifier with negligible collision probability,
// independent of any user-supplied field.
func NewID() string {
	return uuid.NewString()
}

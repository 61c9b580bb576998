package repository

import (
	"context"
	"errors"

	"coursepay-bot-backend/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the durable store for users. CreateIfAbsent is the
// idempotent first-contact path; SetEmail/SetPhone are single-field updates
// so concurrent writers cannot clobber each other's fields.
type UserRepository interface {
	CreateIfAbsent(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	SetEmail(ctx context.Context, id int64, email string) error
	SetPhone(ctx context.Context, id int64, phone string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

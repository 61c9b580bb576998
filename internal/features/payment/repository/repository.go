package repository

import (
	"context"
	"errors"

	"coursepay-bot-backend/internal/features/payment/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrDuplicateRef    = errors.New("payment ref already exists")
)

// PaymentRepository is the durable store for payments.
//
// TransitionFromPending is the only mutation after Create: it applies the
// new status and drops the row from the pending index in one atomic step,
// but only while the row is still pending. The false return is how callers
// learn the row was already terminal, which is what keeps notifications
// at-most-once under concurrent reconciliation passes or restarts.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByRef(ctx context.Context, ref string) (*models.Payment, error)
	ListPendingRefs(ctx context.Context) ([]string, error)
	TransitionFromPending(ctx context.Context, ref string, to models.Status) (bool, error)
	LatestByOwner(ctx context.Context, ownerID int64) (*models.Payment, error)
	CountByStatus(ctx context.Context, status models.Status) (int64, error)
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "coursepay-bot-backend/internal/common/errors"
	"coursepay-bot-backend/internal/common/logger"
	"coursepay-bot-backend/internal/features/catalog"
	"coursepay-bot-backend/internal/features/payment/models"
	"coursepay-bot-backend/internal/features/payment/repository"
	usermodels "coursepay-bot-backend/internal/features/user/models"
	"coursepay-bot-backend/internal/platform/yookassa"
)

// Gateway is the external payment gateway capability.
type Gateway interface {
	CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest) (*yookassa.CreatePaymentResult, error)
	GetPayment(ctx context.Context, paymentRef string) (*yookassa.PaymentInfo, error)
}

// Notifier delivers a confirmation message to a chat.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// EligibilityChecker re-derives onboarding state from durable storage.
type EligibilityChecker interface {
	Eligibility(ctx context.Context, userID int64) (*usermodels.User, error)
}

// Service validates eligibility, creates gateway payment requests and
// persists pending payment records.
type Service struct {
	repo    repository.PaymentRepository
	gateway Gateway
	users   EligibilityChecker
	catalog *catalog.Catalog
}

func NewService(repo repository.PaymentRepository, gateway Gateway, users EligibilityChecker, cat *catalog.Catalog) *Service {
	return &Service{repo: repo, gateway: gateway, users: users, catalog: cat}
}

// InitiatePurchase creates a gateway payment for productID and records it as
// pending. It returns the redirect URL the customer completes payment at.
//
// No gateway call happens before eligibility and catalog checks pass, and no
// payment row is written if the gateway call fails.
func (s *Service) InitiatePurchase(ctx context.Context, userID int64, productID string, chatID int64) (string, error) {
	user, err := s.users.Eligibility(ctx, userID)
	if err != nil {
		return "", err
	}

	product, ok := s.catalog.Get(productID)
	if !ok {
		return "", apperrors.NewUnknownProductError(productID)
	}

	// A fresh key per attempt: retrying a failed attempt must not be
	// deduplicated against an earlier, distinct purchase.
	idempotencyKey := uuid.NewString()

	result, err := s.gateway.CreatePayment(ctx, yookassa.CreatePaymentRequest{
		AmountValue:  formatAmount(product.Price),
		Currency:     product.Currency,
		Description:  product.Description,
		ReceiptEmail: user.Email,
		ReceiptPhone: user.Phone,
		Metadata: map[string]string{
			"chat_id":    strconv.FormatInt(chatID, 10),
			"product_id": product.ID,
		},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", apperrors.NewGatewayError("create payment", err)
	}

	payment := &models.Payment{
		Ref:       result.PaymentRef,
		OwnerID:   userID,
		Amount:    product.Price,
		Currency:  product.Currency,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		// The gateway payment exists but the row does not; reconciliation
		// cannot pick it up, so make the mismatch loud.
		logger.Error().
			Err(err).
			Str("payment_ref", result.PaymentRef).
			Int64("user_id", userID).
			Msg("Gateway payment created but local record write failed")
		return "", apperrors.NewStoreError("create payment record", err)
	}

	logger.Info().
		Str("payment_ref", payment.Ref).
		Int64("user_id", userID).
		Str("product_id", product.ID).
		Int64("amount", payment.Amount).
		Msg("Payment created")
	return result.RedirectURL, nil
}

// formatAmount renders a whole-unit price as the gateway's decimal string.
func formatAmount(price int64) string {
	return fmt.Sprintf("%d.00", price)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "coursepay-bot-backend/internal/common/errors"
	"coursepay-bot-backend/internal/features/catalog"
	"coursepay-bot-backend/internal/features/payment/models"
	"coursepay-bot-backend/internal/features/payment/repository"
	usermodels "coursepay-bot-backend/internal/features/user/models"
)

func readyUser() *usermodels.User {
	return &usermodels.User{ID: 100, Email: "a@b.co", Phone: "+79001234567"}
}

func TestInitiatePurchase(t *testing.T) {
	repo := newFakePaymentRepo()
	gateway := newFakeGateway()
	svc := NewService(repo, gateway, &fakeEligibility{user: readyUser()}, catalog.Default())

	// Scenario C: creating for product "basic" yields a pending row at the
	// catalog price.
	url, err := svc.InitiatePurchase(context.Background(), 100, "basic", 42)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/redirect", url)

	payment, err := repo.GetByRef(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, payment.Status)
	assert.Equal(t, int64(6000), payment.Amount)
	assert.Equal(t, "RUB", payment.Currency)
	assert.Equal(t, int64(100), payment.OwnerID)

	require.Len(t, gateway.createCalls, 1)
	req := gateway.createCalls[0]
	assert.Equal(t, "6000.00", req.AmountValue)
	assert.Equal(t, "a@b.co", req.ReceiptEmail)
	assert.Equal(t, "+79001234567", req.ReceiptPhone)
	assert.Equal(t, "42", req.Metadata["chat_id"])
	assert.Equal(t, "basic", req.Metadata["product_id"])
	assert.NotEmpty(t, req.IdempotencyKey)
}

func TestInitiatePurchaseFreshIdempotencyKeyPerAttempt(t *testing.T) {
	repo := newFakePaymentRepo()
	gateway := newFakeGateway()
	svc := NewService(repo, gateway, &fakeEligibility{user: readyUser()}, catalog.Default())
	ctx := context.Background()

	_, err := svc.InitiatePurchase(ctx, 100, "basic", 42)
	require.NoError(t, err)
	gateway.nextRef = "p2"
	_, err = svc.InitiatePurchase(ctx, 100, "basic", 42)
	require.NoError(t, err)

	require.Len(t, gateway.createCalls, 2)
	assert.NotEqual(t, gateway.createCalls[0].IdempotencyKey, gateway.createCalls[1].IdempotencyKey)
}

func TestInitiatePurchaseNotEligible(t *testing.T) {
	repo := newFakePaymentRepo()
	gateway := newFakeGateway()
	// Scenario B: email set but phone missing.
	user := &usermodels.User{ID: 100, Email: "a@b.co"}
	eligibility := &fakeEligibility{user: user, err: apperrors.NewNotEligibleError(user.MissingFields())}
	svc := NewService(repo, gateway, eligibility, catalog.Default())

	_, err := svc.InitiatePurchase(context.Background(), 100, "basic", 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotEligible, apperrors.CodeOf(err))

	// No gateway call, no payment row.
	assert.Empty(t, gateway.createCalls)
	refs, _ := repo.ListPendingRefs(context.Background())
	assert.Empty(t, refs)
}

func TestInitiatePurchaseUnknownProduct(t *testing.T) {
	repo := newFakePaymentRepo()
	gateway := newFakeGateway()
	svc := NewService(repo, gateway, &fakeEligibility{user: readyUser()}, catalog.Default())

	_, err := svc.InitiatePurchase(context.Background(), 100, "deluxe", 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnknownProduct, apperrors.CodeOf(err))
	assert.Empty(t, gateway.createCalls)
}

func TestInitiatePurchaseGatewayFailure(t *testing.T) {
	repo := newFakePaymentRepo()
	gateway := newFakeGateway()
	gateway.createErr = errors.New("connection refused")
	svc := NewService(repo, gateway, &fakeEligibility{user: readyUser()}, catalog.Default())

	_, err := svc.InitiatePurchase(context.Background(), 100, "basic", 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGateway, apperrors.CodeOf(err))

	// No orphaned pending record for a failed creation attempt.
	_, err = repo.GetByRef(context.Background(), "p1")
	assert.ErrorIs(t, err, repository.ErrPaymentNotFound)
}

func TestInitiatePurchaseStoreFailure(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.failNext = errors.New("store down")
	gateway := newFakeGateway()
	svc := NewService(repo, gateway, &fakeEligibility{user: readyUser()}, catalog.Default())

	_, err := svc.InitiatePurchase(context.Background(), 100, "basic", 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStore, apperrors.CodeOf(err))
}

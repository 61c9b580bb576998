package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"coursepay-bot-backend/internal/features/payment/models"
	"coursepay-bot-backend/internal/features/payment/repository"
)

const (
	keyPrefixPayment       = "payment:"
	keyPendingPayments     = "payments:pending"
	keyPrefixStatusIndex   = "payments:status:"
	keyPrefixOwnerPayments = "payments:owner:"
)

// createScript writes the payment hash and indexes it as pending, refusing
// to overwrite an existing ref.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1],
	"ref", ARGV[1],
	"owner_id", ARGV[2],
	"amount", ARGV[3],
	"currency", ARGV[4],
	"status", ARGV[5],
	"created_at", ARGV[6])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
return 1
`)

// transitionScript applies a terminal status only while the row is still
// pending, moving the ref between status indexes in the same atomic step.
// A second application is a no-op returning 0.
var transitionScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "status") ~= "pending" then
	return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[1])
redis.call("SREM", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[3], ARGV[2])
return 1
`)

type paymentRepository struct {
	client redis.UniversalClient
}

func NewPaymentRepository(client redis.UniversalClient) repository.PaymentRepository {
	return &paymentRepository{client: client}
}

func makePaymentKey(ref string) string {
	return keyPrefixPayment + ref
}

func makeStatusIndexKey(status models.Status) string {
	return keyPrefixStatusIndex + string(status)
}

func makeOwnerKey(ownerID int64) string {
	return keyPrefixOwnerPayments + strconv.FormatInt(ownerID, 10)
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	keys := []string{
		makePaymentKey(payment.Ref),
		keyPendingPayments,
		makeOwnerKey(payment.OwnerID),
	}
	created, err := createScript.Run(ctx, r.client, keys,
		payment.Ref,
		payment.OwnerID,
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		payment.CreatedAt.UTC().Format(time.RFC3339),
	).Int()
	if err != nil {
		return fmt.Errorf("create payment %s: %w", payment.Ref, err)
	}
	if created == 0 {
		return repository.ErrDuplicateRef
	}
	return nil
}

func (r *paymentRepository) GetByRef(ctx context.Context, ref string) (*models.Payment, error) {
	fields, err := r.client.HGetAll(ctx, makePaymentKey(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", ref, err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrPaymentNotFound
	}
	return paymentFromHash(fields)
}

func (r *paymentRepository) ListPendingRefs(ctx context.Context) ([]string, error) {
	refs, err := r.client.SMembers(ctx, keyPendingPayments).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return refs, nil
}

func (r *paymentRepository) TransitionFromPending(ctx context.Context, ref string, to models.Status) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("transition payment %s: %q is not a terminal status", ref, to)
	}

	keys := []string{
		makePaymentKey(ref),
		keyPendingPayments,
		makeStatusIndexKey(to),
	}
	applied, err := transitionScript.Run(ctx, r.client, keys, string(to), ref).Int()
	if err != nil {
		return false, fmt.Errorf("transition payment %s to %s: %w", ref, to, err)
	}
	return applied == 1, nil
}

func (r *paymentRepository) LatestByOwner(ctx context.Context, ownerID int64) (*models.Payment, error) {
	refs, err := r.client.SMembers(ctx, makeOwnerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list payments for owner %d: %w", ownerID, err)
	}

	var latest *models.Payment
	for _, ref := range refs {
		payment, err := r.GetByRef(ctx, ref)
		if err != nil {
			continue
		}
		if latest == nil || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return latest, nil
}

func (r *paymentRepository) CountByStatus(ctx context.Context, status models.Status) (int64, error) {
	key := makeStatusIndexKey(status)
	if status == models.StatusPending {
		key = keyPendingPayments
	}
	n, err := r.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s payments: %w", status, err)
	}
	return n, nil
}

func paymentFromHash(fields map[string]string) (*models.Payment, error) {
	ownerID, err := strconv.ParseInt(fields["owner_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse owner_id %q: %w", fields["owner_id"], err)
	}
	amount, err := strconv.ParseInt(fields["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", fields["amount"], err)
	}

	payment := &models.Payment{
		Ref:      fields["ref"],
		OwnerID:  ownerID,
		Amount:   amount,
		Currency: fields["currency"],
		Status:   models.Status(fields["status"]),
	}
	if raw := fields["created_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			payment.CreatedAt = ts
		}
	}
	return payment, nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"coursepay-bot-backend/internal/features/payment/models"
	"coursepay-bot-backend/internal/features/payment/repository"
	usermodels "coursepay-bot-backend/internal/features/user/models"
	"coursepay-bot-backend/internal/platform/yookassa"
)

// fakePaymentRepo mirrors the redis repository's semantics in memory:
// a pending index plus a conditional only-if-pending transition.
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
	pending  map[string]bool
	failNext error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: map[string]*models.Payment{},
		pending:  map[string]bool{},
	}
}

func (f *fakePaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if _, ok := f.payments[payment.Ref]; ok {
		return repository.ErrDuplicateRef
	}
	clone := *payment
	f.payments[payment.Ref] = &clone
	if payment.Status == models.StatusPending {
		f.pending[payment.Ref] = true
	}
	return nil
}

func (f *fakePaymentRepo) GetByRef(_ context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[ref]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePaymentRepo) ListPendingRefs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]string, 0, len(f.pending))
	for ref := range f.pending {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

func (f *fakePaymentRepo) TransitionFromPending(_ context.Context, ref string, to models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[ref]
	if !ok || payment.Status != models.StatusPending {
		return false, nil
	}
	payment.Status = to
	delete(f.pending, ref)
	return true, nil
}

func (f *fakePaymentRepo) LatestByOwner(_ context.Context, ownerID int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Payment
	for _, p := range f.payments {
		if p.OwnerID != ownerID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrPaymentNotFound
	}
	clone := *latest
	return &clone, nil
}

func (f *fakePaymentRepo) CountByStatus(_ context.Context, status models.Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.payments {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

// fakeGateway scripts per-ref status answers and records create calls.
type fakeGateway struct {
	mu          sync.Mutex
	createCalls []yookassa.CreatePaymentRequest
	createErr   error
	nextRef     string
	redirectURL string

	statuses  map[string]*yookassa.PaymentInfo
	statusErr map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextRef:     "p1",
		redirectURL: "https://pay.example/redirect",
		statuses:    map[string]*yookassa.PaymentInfo{},
		statusErr:   map[string]error{},
	}
}

func (f *fakeGateway) CreatePayment(_ context.Context, req yookassa.CreatePaymentRequest) (*yookassa.CreatePaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &yookassa.CreatePaymentResult{
		PaymentRef:  f.nextRef,
		Status:      "pending",
		RedirectURL: f.redirectURL,
	}, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, ref string) (*yookassa.PaymentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErr[ref]; err != nil {
		return nil, err
	}
	if info, ok := f.statuses[ref]; ok {
		return info, nil
	}
	return &yookassa.PaymentInfo{PaymentRef: ref, Status: "pending"}, nil
}

// fakeEligibility returns a fixed user or error.
type fakeEligibility struct {
	user *usermodels.User
	err  error
}

func (f *fakeEligibility) Eligibility(context.Context, int64) (*usermodels.User, error) {
	if f.err != nil {
		return f.user, f.err
	}
	return f.user, nil
}

// fakeNotifier records deliveries and can fail on demand.
type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

type delivery struct {
	chatID int64
	text   string
}

func (f *fakeNotifier) Deliver(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{chatID: chatID, text: text})
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

var errGatewayDown = errors.New("gateway timeout")

package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"coursepay-bot-backend/internal/common/logger"
	"coursepay-bot-backend/internal/features/payment/models"
	"coursepay-bot-backend/internal/features/payment/repository"
)

const confirmationMessage = "🎉 *Ваш платеж подтвержден!*\n\n" +
	"Спасибо за покупку! Организаторы курса свяжутся с вами " +
	"в ближайшее время для предоставления доступа."

// Reconciler periodically drains pending payments, asks the gateway for
// their authoritative status, applies terminal transitions and delivers at
// most one confirmation per transition.
type Reconciler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	repo     repository.PaymentRepository
	gateway  Gateway
	notifier Notifier

	interval       time.Duration
	gatewayTimeout time.Duration
}

func NewReconciler(repo repository.PaymentRepository, gateway Gateway, notifier Notifier, interval, gatewayTimeout time.Duration) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		ctx:            ctx,
		cancel:         cancel,
		repo:           repo,
		gateway:        gateway,
		notifier:       notifier,
		interval:       interval,
		gatewayTimeout: gatewayTimeout,
	}
}

// Start launches the reconciliation loop. The loop only stops on Stop();
// no payment failure terminates it.
func (r *Reconciler) Start() {
	logger.Info().Dur("interval", r.interval).Msg("Starting payment reconciler")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.RunCycle(r.ctx)
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight cycle to finish, so a
// shutdown never interrupts a row write.
func (r *Reconciler) Stop() {
	logger.Info().Msg("Stopping payment reconciler")
	r.cancel()
	r.wg.Wait()
	logger.Info().Msg("Payment reconciler stopped")
}

// RunCycle processes every currently pending payment once. A single
// payment's failure is logged and skipped; the rest of the cycle continues.
func (r *Reconciler) RunCycle(ctx context.Context) {
	refs, err := r.repo.ListPendingRefs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending payments")
		return
	}
	if len(refs) == 0 {
		return
	}

	logger.Debug().Int("pending", len(refs)).Msg("Reconciling pending payments")

	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		if err := r.reconcileOne(ctx, ref); err != nil {
			logger.Error().
				Err(err).
				Str("payment_ref", ref).
				Msg("Failed to reconcile payment, will retry next cycle")
		}
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, ref string) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.gatewayTimeout)
	defer cancel()

	info, err := r.gateway.GetPayment(queryCtx, ref)
	if err != nil {
		return err
	}

	status := models.StatusFromGateway(info.Status)
	if status == models.StatusPending {
		return nil
	}
	if status == models.StatusUnknown {
		logger.Warn().
			Str("payment_ref", ref).
			Str("gateway_status", info.Status).
			Msg("Unrecognized gateway status, marking payment unknown")
	}

	applied, err := r.repo.TransitionFromPending(ctx, ref, status)
	if err != nil {
		return err
	}
	if !applied {
		// Another writer already moved this row out of pending; its
		// notification, if any, was theirs to send.
		return nil
	}

	logger.Info().
		Str("payment_ref", ref).
		Str("status", string(status)).
		Msg("Payment transitioned")

	if status == models.StatusSucceeded {
		r.notify(ctx, ref, info.Metadata)
	}
	return nil
}

// notify delivers the confirmation for a transition this cycle applied.
// Delivery failure is logged and never rolls the transition back.
func (r *Reconciler) notify(ctx context.Context, ref string, metadata map[string]string) {
	raw, ok := metadata["chat_id"]
	if !ok || raw == "" {
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Warn().
			Str("payment_ref", ref).
			Str("chat_id", raw).
			Msg("Unparseable chat_id in payment metadata, skipping notification")
		return
	}

	if err := r.notifier.Deliver(ctx, chatID, confirmationMessage); err != nil {
		logger.Error().
			Err(err).
			Str("payment_ref", ref).
			Int64("chat_id", chatID).
			Msg("Failed to deliver payment confirmation")
	}
}

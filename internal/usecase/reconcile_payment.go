package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

type ReconcileResult string

const (
	ReconcileApplied ReconcileResult = "applied"
	ReconcileIgnored ReconcileResult = "ignored"
	ReconcileStale   ReconcileResult = "stale"
)

// ReconcilePayment settles PENDING orders from processor events. Replays and
// out-of-order deliveries are no-ops because only PENDING orders move.
type ReconcilePayment struct {
	repo OrderRepo
	w    *statusWriter
	log  *slog.Logger
}

func NewReconcilePayment(repo OrderRepo, cache OrderCache, out OutboxRepo) *ReconcilePayment {
	log := logging.New("reconcile")
	return &ReconcilePayment{
		repo: repo,
		w:    &statusWriter{repo: repo, cache: cache, out: out, log: log, now: time.Now},
		log:  log,
	}
}

func (uc *ReconcilePayment) Execute(ctx context.Context, ev PaymentEvent) (ReconcileResult, error) {
	var to domain.Status
	switch ev.Type {
	case PaymentSucceeded:
		to = domain.StatusProcessing
	case PaymentFailed:
		to = domain.StatusCancelled
	default:
		return ReconcileIgnored, nil
	}
	piID := ev.PaymentIntentID()
	if piID == "" {
		return ReconcileIgnored, fmt.Errorf("event %s without payment intent: %w", ev.ID, ErrInvalidInput)
	}

	o, err := uc.repo.GetByPaymentIntent(ctx, piID)
	if errors.Is(err, ErrNotFound) {
		return ReconcileIgnored, fmt.Errorf("payment intent %s: %w", piID, ErrOrderNotFound)
	}
	if err != nil {
		return ReconcileIgnored, fmt.Errorf("load order: %w", err)
	}
	if o.Status != domain.StatusPending {
		uc.log.Info("payment event for settled order", "order_id", o.ID, "status", o.Status, "event", ev.Type)
		return ReconcileStale, nil
	}

	ok, err := uc.w.apply(ctx, o, to)
	if err != nil {
		return ReconcileIgnored, err
	}
	if !ok {
		return ReconcileStale, nil
	}
	if ev.Data.Object.LastPaymentError != nil {
		uc.log.Info("payment failed", "order_id", o.ID, "reason", ev.Data.Object.LastPaymentError.Message)
	}
	return ReconcileApplied, nil
}

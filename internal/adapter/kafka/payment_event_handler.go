package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/usecase"
)

type Reconciler interface {
	Execute(ctx context.Context, ev usecase.PaymentEvent) (usecase.ReconcileResult, error)
}

// NewPaymentEventHandler reconciles processor events replayed onto Kafka.
// Unknown intents are retried; the order row may not be visible yet.
func NewPaymentEventHandler(r Reconciler) HandlerFunc {
	return func(ctx context.Context, ev usecase.PaymentEvent) error {
		res, err := r.Execute(ctx, ev)
		switch {
		case err == nil:
			middleware.ObservePaymentEvent("kafka", string(res))
			return nil
		case errors.Is(err, usecase.ErrInvalidInput):
			middleware.ObservePaymentEvent("kafka", "invalid")
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		case errors.Is(err, usecase.ErrOrderNotFound):
			middleware.ObservePaymentEvent("kafka", "not_found")
			return err
		default:
			middleware.ObservePaymentEvent("kafka", "error")
			return err
		}
	}
}

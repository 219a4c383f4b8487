package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/storefront-api/internal/usecase"
)

type StockCommitter interface {
	Handle(ctx context.Context, msg usecase.OrderStatusChangedMsg) error
}

// NewStockCommitHandler consumes order.status_changed and commits stock for
// paid orders. Errors that a redelivery cannot fix are dropped as poison.
func NewStockCommitHandler(uc StockCommitter) Handler {
	return JSONHandler[usecase.OrderStatusChangedMsg]{
		HandleFunc: func(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
			err := uc.Handle(ctx, msg)
			if errors.Is(err, usecase.ErrInsufficientStock) || errors.Is(err, usecase.ErrOrderNotFound) {
				return fmt.Errorf("%w: %v", ErrPoison, err)
			}
			return err
		},
	}
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

const idemScopeStock = "stock"

// CommitStock decrements catalog stock once per paid order.
type CommitStock struct {
	repo    OrderRepo
	catalog CatalogRepo
	idem    IdempotencyStore
	log     *slog.Logger
}

func NewCommitStock(repo OrderRepo, catalog CatalogRepo, idem IdempotencyStore) *CommitStock {
	return &CommitStock{repo: repo, catalog: catalog, idem: idem, log: logging.New("commit-stock")}
}

func (uc *CommitStock) Handle(ctx context.Context, msg OrderStatusChangedMsg) error {
	if msg.To != domain.StatusProcessing {
		return nil
	}
	if _, done, err := uc.idem.Recall(ctx, idemScopeStock, msg.OrderID); err == nil && done {
		return nil
	}
	ok, err := uc.idem.TryLock(ctx, idemScopeStock, msg.OrderID)
	if err != nil {
		return fmt.Errorf("stock lock: %w", err)
	}
	if !ok {
		// another consumer holds it; redelivery will find it remembered
		return fmt.Errorf("order %s: %w", msg.OrderID, ErrDuplicate)
	}

	o, err := loadOrder(ctx, uc.repo, msg.OrderID)
	if err == nil {
		err = uc.catalog.DecrementStock(ctx, o.Items)
	}
	if err != nil {
		if rerr := uc.idem.Release(context.WithoutCancel(ctx), idemScopeStock, msg.OrderID); rerr != nil {
			uc.log.Error("release stock lock", "err", rerr, "order_id", msg.OrderID)
		}
		return fmt.Errorf("commit stock for %s: %w", msg.OrderID, err)
	}

	if err := uc.idem.Remember(ctx, idemScopeStock, msg.OrderID, "done"); err != nil {
		uc.log.Error("remember stock commit", "err", err, "order_id", msg.OrderID)
	}
	uc.log.Info("stock committed", "order_id", msg.OrderID, "lines", len(o.Items))
	return nil
}

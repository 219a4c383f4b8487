package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrConflict          = errors.New("order changed concurrently")
)

// statusWriter applies a guarded transition and fans it out to the cache and
// the outbox. Both side effects are best-effort.
type statusWriter struct {
	repo  OrderRepo
	cache OrderCache // optional
	out   OutboxRepo
	log   *slog.Logger
	now   func() time.Time
}

func (w *statusWriter) apply(ctx context.Context, o *domain.Order, to domain.Status) (bool, error) {
	from := o.Status
	ok, err := w.repo.UpdateStatusIf(ctx, o.ID, from, to)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = w.now()

	if w.cache != nil {
		if err := w.cache.SetStatus(ctx, StatusView{OrderID: o.ID, UserID: o.UserID, Status: to}); err != nil {
			w.log.Warn("cache order status", "err", err, "order_id", o.ID)
		}
	}
	payload, _ := json.Marshal(OrderStatusChangedMsg{
		Type:    ChannelOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		From:    from,
		To:      to,
		At:      o.UpdatedAt,
	})
	if err := w.out.Insert(ctx, ChannelOrderStatusChanged, o.ID, payload); err != nil {
		w.log.Error("enqueue order.status_changed", "err", err, "order_id", o.ID)
	}
	w.log.Info("order status changed", "order_id", o.ID, "from", from, "to", to)
	return true, nil
}

func loadOrder(ctx context.Context, repo OrderRepo, id string) (*domain.Order, error) {
	o, err := repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

type UpdateOrderStatus struct {
	repo OrderRepo
	w    *statusWriter
}

func NewUpdateOrderStatus(repo OrderRepo, cache OrderCache, out OutboxRepo) *UpdateOrderStatus {
	return &UpdateOrderStatus{
		repo: repo,
		w:    &statusWriter{repo: repo, cache: cache, out: out, log: logging.New("order-status"), now: time.Now},
	}
}

// Execute moves the order forward to status. Same-status updates are illegal.
func (uc *UpdateOrderStatus) Execute(ctx context.Context, orderID, status string) (*domain.Order, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := loadOrder(ctx, uc.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%s -> %s: %w", o.Status, to, ErrIllegalTransition)
	}
	ok, err := uc.w.apply(ctx, o, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return o, nil
}

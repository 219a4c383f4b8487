package usecase

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"golang.org/x/sync/singleflight"
)

var ErrForbidden = errors.New("forbidden")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Viewer is the authenticated caller of a read.
type Viewer struct {
	UserID string
	Admin  bool
}

func (v Viewer) canSee(ownerID string) bool { return v.Admin || v.UserID == ownerID }

type GetOrder struct {
	repo  OrderRepo
	cache OrderCache // optional
	group singleflight.Group
	log   *slog.Logger
}

func NewGetOrder(repo OrderRepo, cache OrderCache) *GetOrder {
	return &GetOrder{repo: repo, cache: cache, log: logging.New("get-order")}
}

func (uc *GetOrder) Get(ctx context.Context, v Viewer, id string) (*domain.Order, error) {
	o, err := loadOrder(ctx, uc.repo, id)
	if err != nil {
		return nil, err
	}
	// hide existence from other users
	if !v.canSee(o.UserID) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Status is cache-aside; concurrent misses for one order share a single load.
func (uc *GetOrder) Status(ctx context.Context, v Viewer, id string) (StatusView, error) {
	if uc.cache != nil {
		sv, ok, err := uc.cache.GetStatus(ctx, id)
		if err != nil {
			uc.log.Warn("status cache read", "err", err, "order_id", id)
		}
		if ok {
			if !v.canSee(sv.UserID) {
				return StatusView{}, ErrOrderNotFound
			}
			return sv, nil
		}
	}

	res, err, _ := uc.group.Do(id, func() (any, error) {
		o, err := loadOrder(ctx, uc.repo, id)
		if err != nil {
			return StatusView{}, err
		}
		sv := StatusView{OrderID: o.ID, UserID: o.UserID, Status: o.Status}
		if uc.cache != nil {
			if err := uc.cache.SetStatus(ctx, sv); err != nil {
				uc.log.Warn("status cache write", "err", err, "order_id", id)
			}
		}
		return sv, nil
	})
	if err != nil {
		return StatusView{}, err
	}
	sv := res.(StatusView)
	if !v.canSee(sv.UserID) {
		return StatusView{}, ErrOrderNotFound
	}
	return sv, nil
}

// List returns the caller's orders, or any orders for admins.
func (uc *GetOrder) List(ctx context.Context, v Viewer, f OrderFilter) ([]domain.Order, error) {
	if !v.Admin {
		if f.UserID != "" && f.UserID != v.UserID {
			return nil, ErrForbidden
		}
		f.UserID = v.UserID
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return uc.repo.List(ctx, f)
}

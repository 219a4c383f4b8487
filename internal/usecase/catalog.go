package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/google/uuid"
)

// ErrInvalidProduct wraps the FieldErrors of a rejected catalog write.
var ErrInvalidProduct = errors.New("invalid product")

type Catalog struct {
	repo CatalogRepo
}

func NewCatalog(repo CatalogRepo) *Catalog { return &Catalog{repo: repo} }

func (c *Catalog) List(ctx context.Context, category string) ([]domain.Product, error) {
	return c.repo.List(ctx, category)
}

func (c *Catalog) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := c.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrProductNotFound)
	}
	return p, err
}

// CatalogAdmin creates, replaces and deletes products. Callers gate it on the
// ADMIN role.
type CatalogAdmin struct {
	repo ProductWriter
	log  *slog.Logger
}

func NewCatalogAdmin(repo ProductWriter) *CatalogAdmin {
	return &CatalogAdmin{repo: repo, log: logging.New("catalog-admin")}
}

func (a *CatalogAdmin) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = uuid.NewString()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	if err := a.repo.Insert(ctx, &p); err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	a.log.Info("product created", "product_id", p.ID)
	return &p, nil
}

// Replace overwrites every field of an existing product.
func (a *CatalogAdmin) Replace(ctx context.Context, id string, p domain.Product) (*domain.Product, error) {
	p.ID = id
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	if err := a.repo.Update(ctx, &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	a.log.Info("product updated", "product_id", id)
	return &p, nil
}

// Delete removes a product. Orders keep their own item snapshots.
func (a *CatalogAdmin) Delete(ctx context.Context, id string) error {
	if err := a.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s: %w", id, ErrProductNotFound)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	a.log.Info("product deleted", "product_id", id)
	return nil
}

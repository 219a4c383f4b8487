package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
)

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

const productColumns = `id,name,price,stock,images,category_id,category_name`

func (r *MySQLProductRepo) List(ctx context.Context, category string) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if category != "" {
		q += ` WHERE category_id=?`
		args = append(args, category)
	}
	q += ` ORDER BY name`
	return r.query(ctx, q, args...)
}

func (r *MySQLProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	return p, err
}

func (r *MySQLProductRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders(len(ids)) + `)`
	ps, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

// DecrementStock runs in one transaction; a line that would go negative rolls
// back all of them.
func (r *MySQLProductRepo) DecrementStock(ctx context.Context, items []domain.OrderItem) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, it := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
			it.Quantity, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", it.ProductID, usecase.ErrInsufficientStock)
		}
	}
	return tx.Commit()
}

func (r *MySQLProductRepo) Insert(ctx context.Context, p *domain.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO products (id,name,price,stock,images,category_id,category_name)
VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Price.StringFixed(2), p.Stock, images, p.Category.ID, p.Category.Name)
	if isDuplicate(err) {
		return fmt.Errorf("product %s: %w", p.ID, usecase.ErrDuplicate)
	}
	return err
}

// Update replaces every column. MySQL reports 0 affected rows for an
// unchanged row, so a miss is confirmed with a lookup.
func (r *MySQLProductRepo) Update(ctx context.Context, p *domain.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE products SET name=?,price=?,stock=?,images=?,category_id=?,category_name=?
WHERE id=?`,
		p.Name, p.Price.StringFixed(2), p.Stock, images, p.Category.ID, p.Category.Name, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id=?`, p.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return usecase.ErrNotFound
	}
	return err
}

func (r *MySQLProductRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

func (r *MySQLProductRepo) query(ctx context.Context, q string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p      domain.Product
		price  decimal.Decimal
		images []byte
	)
	if err := s.Scan(&p.ID, &p.Name, &price, &p.Stock, &images, &p.Category.ID, &p.Category.Name); err != nil {
		return nil, err
	}
	p.Price = price
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("product %s images: %w", p.ID, err)
		}
	}
	return &p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var (
	_ usecase.CatalogRepo   = (*MySQLProductRepo)(nil)
	_ usecase.ProductWriter = (*MySQLProductRepo)(nil)
)

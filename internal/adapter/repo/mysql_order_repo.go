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
	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderColumns = `id,user_id,status,amount_cents,currency,items_json,shipping_json,payment_intent_id,created_at,updated_at`

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order, idemKey string) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshal shipping: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (id,user_id,status,amount_cents,currency,items_json,shipping_json,payment_intent_id,idempotency_key,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,0,?,?)`,
		o.ID, o.UserID, string(o.Status), int64(o.Amount.Cents), o.Amount.Currency,
		items, shipping, o.PaymentIntentID, idemKey, o.CreatedAt, o.UpdatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("order %s: %w", o.ID, usecase.ErrDuplicate)
	}
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id=?`, paymentIntentID)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) List(ctx context.Context, f usecase.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET status = ?, version = version + 1, updated_at = NOW()
WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// rows == 0 → either not found or status mismatch
	return rows > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o                domain.Order
		status, currency string
		cents            int64
		items, shipping  []byte
	)
	err := s.Scan(&o.ID, &o.UserID, &status, &cents, &currency, &items, &shipping, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.Amount = domain.Money{Cents: domain.Cents(cents), Currency: currency}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("order %s shipping: %w", o.ID, err)
	}
	return &o, nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)

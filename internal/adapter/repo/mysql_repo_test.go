package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{"id", "user_id", "status", "amount_cents", "currency", "items_json", "shipping_json", "payment_intent_id", "created_at", "updated_at"}

func orderRow(rows *sqlmock.Rows, id, user, status string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, user, status, int64(2000), "usd",
		[]byte(`[{"productId":"p1","quantity":2,"priceCents":1000}]`),
		[]byte(`{"fullName":"Ada Lovelace","email":"ada@example.com"}`),
		"pi_"+id, at, at)
}

func TestOrderRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	o := &domain.Order{
		ID:              "o1",
		UserID:          "u1",
		Status:          domain.StatusPending,
		Amount:          domain.Money{Cents: 2000, Currency: "usd"},
		Items:           []domain.OrderItem{{ProductID: "p1", Quantity: 2, PriceCents: 1000}},
		PaymentIntentID: "pi_1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs("o1", "u1", "PENDING", int64(2000), "usd", sqlmock.AnyArg(), sqlmock.AnyArg(), "pi_1", "key-1", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewMySQLOrderRepo(db).Create(context.Background(), o, "key-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err = NewMySQLOrderRepo(db).Create(context.Background(), &domain.Order{ID: "o1"}, "k")
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
}

func TestOrderRepo_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM orders WHERE id=\?`).
		WithArgs("o1").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "o1", "u1", "PROCESSING", at))

	o, err := NewMySQLOrderRepo(db).GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, o.Status)
	assert.Equal(t, domain.Cents(2000), o.Amount.Cents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, domain.Cents(1000), o.Items[0].PriceCents)
	assert.Equal(t, "Ada Lovelace", o.Shipping.FullName)
	assert.Equal(t, "pi_o1", o.PaymentIntentID)
	assert.Equal(t, at, o.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByPaymentIntentMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM orders WHERE payment_intent_id=\?`).
		WithArgs("pi_x").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err = NewMySQLOrderRepo(db).GetByPaymentIntent(context.Background(), "pi_x")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestOrderRepo_ListWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	rows := sqlmock.NewRows(orderCols)
	orderRow(rows, "o2", "u1", "PENDING", at)
	orderRow(rows, "o1", "u1", "PENDING", at)
	mock.ExpectQuery(`FROM orders WHERE user_id=\? AND status=\? ORDER BY created_at DESC LIMIT \?`).
		WithArgs("u1", "PENDING", 10).
		WillReturnRows(rows)

	out, err := NewMySQLOrderRepo(db).List(context.Background(), usecase.OrderFilter{UserID: "u1", Status: domain.StatusPending, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "o2", out[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateStatusIf(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := NewMySQLOrderRepo(db)

	mock.ExpectExec(`UPDATE orders`).
		WithArgs("PROCESSING", "o1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE orders`).
		WithArgs("PROCESSING", "o1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.UpdateStatusIf(context.Background(), "o1", domain.StatusPending, domain.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.UpdateStatusIf(context.Background(), "o1", domain.StatusPending, domain.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := NewMySQLOutboxRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("order.created", "o1", []byte(`{}`), "PENDING").
		WillReturnResult(sqlmock.NewResult(7, 1))
	require.NoError(t, r.Insert(ctx, "order.created", "o1", []byte(`{}`)))

	mock.ExpectQuery(`SELECT id,channel,aggregate_id,payload,retry_count`).
		WithArgs("PENDING", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel", "aggregate_id", "payload", "retry_count"}).
			AddRow(int64(7), "order.created", "o1", []byte(`{}`), 2))
	msgs, err := r.FetchPending(ctx, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(7), msgs[0].ID)
	assert.Equal(t, 2, msgs[0].RetryCount)

	mock.ExpectExec(`UPDATE outbox SET status = \?`).WithArgs("SENT", int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.MarkSent(ctx, 7))

	next := time.Now().Add(time.Minute)
	mock.ExpectExec(`UPDATE outbox SET retry_count`).WithArgs(next, int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.MarkFailed(ctx, 7, next))
	require.NoError(t, mock.ExpectationsWereMet())
}

var productCols = []string{"id", "name", "price", "stock", "images", "category_id", "category_name"}

func TestProductRepo_GetByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id IN \(\?,\?\)`).
		WithArgs("p1", "p2").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p1", "Shoe", "19.99", 4, []byte(`["a.png"]`), "c1", "Shoes").
			AddRow("p2", "Hat", "5.00", 0, []byte(`[]`), "c2", "Hats"))

	ps, err := NewMySQLProductRepo(db).GetByIDs(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.True(t, ps["p1"].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, []string{"a.png"}, ps["p1"].Images)
	assert.Equal(t, "Shoes", ps["p1"].Category.Name)
	cents, err := ps["p1"].PriceCents()
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(1999), cents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id=\?`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(productCols))
	_, err = NewMySQLProductRepo(db).GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestProductRepo_ListByCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE category_id=\? ORDER BY name`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(productCols).AddRow("p1", "Shoe", "19.99", 4, []byte(`[]`), "c1", "Shoes"))

	ps, err := NewMySQLProductRepo(db).List(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, ps, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecrementStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	items := []domain.OrderItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products SET stock = stock - \?`).WithArgs(2, "p1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE products SET stock = stock - \?`).WithArgs(1, "p2", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewMySQLProductRepo(db).DecrementStock(context.Background(), items))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecrementStockRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	items := []domain.OrderItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 9}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products`).WithArgs(2, "p1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE products`).WithArgs(9, "p2", 9).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = NewMySQLProductRepo(db).DecrementStock(context.Background(), items)
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecrementStockExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products`).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err = NewMySQLProductRepo(db).DecrementStock(context.Background(), []domain.OrderItem{{ProductID: "p1", Quantity: 1}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newProduct() *domain.Product {
	return &domain.Product{
		ID: "p1", Name: "Shoe", Price: decimal.RequireFromString("19.9"), Stock: 4,
		Images: []string{"a.png"}, Category: domain.Category{ID: "c1", Name: "Shoes"},
	}
}

func TestProductRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO products`).
		WithArgs("p1", "Shoe", "19.90", 4, []byte(`["a.png"]`), "c1", "Shoes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewMySQLProductRepo(db).Insert(context.Background(), newProduct()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_InsertDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO products`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err = NewMySQLProductRepo(db).Insert(context.Background(), newProduct())
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
}

func TestProductRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE products SET name=\?,price=\?`).
		WithArgs("Shoe", "19.90", 4, []byte(`["a.png"]`), "c1", "Shoes", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewMySQLProductRepo(db).Update(context.Background(), newProduct()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_UpdateUnchangedRowIsNotMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE products SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM products WHERE id=\?`).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	require.NoError(t, NewMySQLProductRepo(db).Update(context.Background(), newProduct()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_UpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE products SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM products`).WithArgs("p1").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	err = NewMySQLProductRepo(db).Update(context.Background(), newProduct())
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestProductRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM products WHERE id=\?`).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM products WHERE id=\?`).WithArgs("p2").WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewMySQLProductRepo(db)
	require.NoError(t, r.Delete(context.Background(), "p1"))
	assert.ErrorIs(t, r.Delete(context.Background(), "p2"), usecase.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

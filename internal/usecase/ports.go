package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
)

// ErrNotFound is returned (possibly wrapped) by repositories for missing rows.
var ErrNotFound = errors.New("not found")

type OrderFilter struct {
	UserID string
	Status domain.Status // empty => any
	Limit  int
}

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order, idemKey string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// UpdateStatusIf reports false when the order is no longer in status from.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error)
}

type CatalogRepo interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	// DecrementStock applies every line or none.
	DecrementStock(ctx context.Context, items []domain.OrderItem) error
}

// ProductWriter is the admin side of the catalog. Update and Delete return
// ErrNotFound for unknown ids.
type ProductWriter interface {
	Insert(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
}

type OutboxMessage struct {
	ID          int64
	Channel     string
	AggregateID string
	Payload     []byte
	RetryCount  int
}

type OutboxRepo interface {
	Insert(ctx context.Context, channel, aggregateID string, payload []byte) error
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextAttempt time.Time) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

// StatusView is what the status cache holds per order.
type StatusView struct {
	OrderID string        `json:"orderId"`
	UserID  string        `json:"userId"`
	Status  domain.Status `json:"status"`
}

type OrderCache interface {
	SetStatus(ctx context.Context, v StatusView) error
	GetStatus(ctx context.Context, orderID string) (StatusView, bool, error)
}

type PaymentIntentInput struct {
	Amount         domain.Cents
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, in PaymentIntentInput) (PaymentIntent, error)
}

// EventPublisher delivers outbox payloads to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

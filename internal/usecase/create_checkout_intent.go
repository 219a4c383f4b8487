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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicate             = errors.New("duplicate idempotency key")
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	ErrInvalidInput          = errors.New("invalid input")
	ErrProductNotFound       = errors.New("product not found")
	ErrPriceChanged          = errors.New("price changed")
	ErrInsufficientStock     = errors.New("insufficient stock")
)

const idemScopeCheckout = "checkout"

// orderIDSpace names order ids derived from (user, idempotency key), so every
// retry of one checkout attempt sends the processor identical parameters.
var orderIDSpace = uuid.MustParse("6f1c2b4e-8d3a-4e5f-9a7b-2c1d0e9f8a6b")

func checkoutOrderID(userID, key string) string {
	return uuid.NewSHA1(orderIDSpace, []byte(userID+":"+key)).String()
}

type CheckoutItemInput struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CreateCheckoutIntentInput struct {
	UserID         string
	IdempotencyKey string
	Items          []CheckoutItemInput
	Shipping       domain.ShippingAddress
}

type CreateCheckoutIntentOutput struct {
	OrderID      string `json:"orderId"`
	ClientSecret string `json:"clientSecret"`
}

type CreateCheckoutIntent struct {
	catalog  CatalogRepo
	repo     OrderRepo
	idem     IdempotencyStore
	out      OutboxRepo
	payments PaymentGateway
	currency string
	log      *slog.Logger
}

func NewCreateCheckoutIntent(catalog CatalogRepo, repo OrderRepo, idem IdempotencyStore, out OutboxRepo, payments PaymentGateway, currency string) *CreateCheckoutIntent {
	return &CreateCheckoutIntent{
		catalog:  catalog,
		repo:     repo,
		idem:     idem,
		out:      out,
		payments: payments,
		currency: currency,
		log:      logging.New("checkout-intent"),
	}
}

func (uc *CreateCheckoutIntent) Execute(ctx context.Context, in CreateCheckoutIntentInput) (CreateCheckoutIntentOutput, error) {
	if in.IdempotencyKey == "" {
		return CreateCheckoutIntentOutput{}, ErrMissingIdempotencyKey
	}
	if err := validateItems(in.Items); err != nil {
		return CreateCheckoutIntentOutput{}, err
	}
	if err := in.Shipping.Validate(); err != nil {
		return CreateCheckoutIntentOutput{}, err
	}
	scope := idemScopeCheckout + ":" + in.UserID

	// Fast path: a retry of an attempt that already produced an order
	if out, ok := uc.recall(ctx, scope, in.IdempotencyKey); ok {
		return out, nil
	}
	ok, err := uc.idem.TryLock(ctx, scope, in.IdempotencyKey)
	if err != nil {
		return CreateCheckoutIntentOutput{}, fmt.Errorf("idempotency lock: %w", err)
	}
	if !ok {
		return CreateCheckoutIntentOutput{}, ErrDuplicate
	}

	out, err := uc.create(ctx, in)
	if err != nil {
		if rerr := uc.idem.Release(context.WithoutCancel(ctx), scope, in.IdempotencyKey); rerr != nil {
			uc.log.Error("release idempotency lock", "err", rerr, "user_id", in.UserID)
		}
		return CreateCheckoutIntentOutput{}, err
	}

	raw, _ := json.Marshal(out)
	if err := uc.idem.Remember(ctx, scope, in.IdempotencyKey, string(raw)); err != nil {
		uc.log.Error("remember checkout intent", "err", err, "order_id", out.OrderID)
	}
	return out, nil
}

func (uc *CreateCheckoutIntent) recall(ctx context.Context, scope, key string) (CreateCheckoutIntentOutput, bool) {
	raw, ok, err := uc.idem.Recall(ctx, scope, key)
	if err != nil || !ok {
		return CreateCheckoutIntentOutput{}, false
	}
	var out CreateCheckoutIntentOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.OrderID == "" {
		return CreateCheckoutIntentOutput{}, false
	}
	return out, true
}

func (uc *CreateCheckoutIntent) create(ctx context.Context, in CreateCheckoutIntentInput) (CreateCheckoutIntentOutput, error) {
	items, err := uc.priceItems(ctx, in.Items)
	if err != nil {
		return CreateCheckoutIntentOutput{}, err
	}
	total := domain.ItemsTotal(items)

	orderID := checkoutOrderID(in.UserID, in.IdempotencyKey)
	intent, err := uc.payments.CreateIntent(ctx, PaymentIntentInput{
		Amount:         total,
		Currency:       uc.currency,
		IdempotencyKey: in.UserID + ":" + in.IdempotencyKey,
		Metadata:       map[string]string{"orderId": orderID, "userId": in.UserID},
	})
	if err != nil {
		return CreateCheckoutIntentOutput{}, fmt.Errorf("create payment intent: %w", err)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              orderID,
		UserID:          in.UserID,
		Status:          domain.StatusPending,
		Amount:          domain.Money{Cents: total, Currency: uc.currency},
		Items:           items,
		Shipping:        in.Shipping,
		PaymentIntentID: intent.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := order.Validate(); err != nil {
		return CreateCheckoutIntentOutput{}, err
	}
	if err := uc.repo.Create(ctx, order, in.IdempotencyKey); err != nil {
		if !errors.Is(err, ErrDuplicate) || !uc.alreadyWritten(ctx, order) {
			return CreateCheckoutIntentOutput{}, fmt.Errorf("create order: %w", err)
		}
		uc.log.Warn("order already written by an earlier attempt", "order_id", orderID)
	}

	payload, _ := json.Marshal(OrderCreatedMsg{
		Type:            ChannelOrderCreated,
		OrderID:         orderID,
		UserID:          in.UserID,
		Cents:           total,
		Currency:        uc.currency,
		PaymentIntentID: intent.ID,
		Items:           items,
	})
	if err := uc.out.Insert(ctx, ChannelOrderCreated, orderID, payload); err != nil {
		uc.log.Error("enqueue order.created", "err", err, "order_id", orderID)
	}

	uc.log.Info("checkout intent created", "order_id", orderID, "user_id", in.UserID, "amount_cents", int64(total))
	return CreateCheckoutIntentOutput{OrderID: orderID, ClientSecret: intent.ClientSecret}, nil
}

// alreadyWritten reports whether a previous attempt with the same key stored
// this order before failing.
func (uc *CreateCheckoutIntent) alreadyWritten(ctx context.Context, o *domain.Order) bool {
	existing, err := uc.repo.GetByID(ctx, o.ID)
	if err != nil {
		return false
	}
	return existing.UserID == o.UserID && existing.PaymentIntentID == o.PaymentIntentID
}

// priceItems takes unit prices from the catalog. The submitted price is only
// compared, never used.
func (uc *CreateCheckoutIntent) priceItems(ctx context.Context, in []CheckoutItemInput) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(in))
	for _, it := range in {
		ids = append(ids, it.ProductID)
	}
	products, err := uc.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(in))
	for _, it := range in {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%s: %w", it.ProductID, ErrProductNotFound)
		}
		price, err := p.PriceCents()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.ProductID, err)
		}
		if !p.Price.Equal(it.Price) {
			return nil, fmt.Errorf("%s: %w", it.ProductID, ErrPriceChanged)
		}
		if it.Quantity > p.Stock {
			return nil, fmt.Errorf("%s: %w", it.ProductID, ErrInsufficientStock)
		}
		items = append(items, domain.OrderItem{ProductID: p.ID, Quantity: it.Quantity, PriceCents: price})
	}
	return items, nil
}

func validateItems(items []CheckoutItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("no items: %w", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		switch {
		case it.ProductID == "":
			return fmt.Errorf("item without productId: %w", ErrInvalidInput)
		case it.Quantity <= 0:
			return fmt.Errorf("%s: quantity must be positive: %w", it.ProductID, ErrInvalidInput)
		case seen[it.ProductID]:
			return fmt.Errorf("%s: duplicate item: %w", it.ProductID, ErrInvalidInput)
		}
		seen[it.ProductID] = true
	}
	return nil
}

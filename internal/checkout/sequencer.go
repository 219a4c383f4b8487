// Package checkout drives the two-step checkout: shipping details create the
// order and payment intent, then payment confirmation clears the cart.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrInFlight            = errors.New("checkout request already in flight")
	ErrWrongStep           = errors.New("not allowed in current checkout step")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrMissingClientSecret = errors.New("no client secret for payment")
)

// PaymentError is a confirmation failure with a shopper-facing reason.
type PaymentError struct {
	Code   string
	Reason string
}

func (e *PaymentError) Error() string {
	if e.Code == "" {
		return "payment failed: " + e.Reason
	}
	return fmt.Sprintf("payment failed (%s): %s", e.Code, e.Reason)
}

type Result struct {
	OrderID string
}

// State is a read-only view for the UI.
type State struct {
	Step     Step
	Busy     bool
	Shipping *domain.ShippingAddress
	OrderID  string
}

type Sequencer struct {
	cart      Cart
	intents   IntentClient
	payments  PaymentConfirmer
	returnURL string
	newKey    func() string
	log       *slog.Logger

	mu           sync.Mutex
	step         Step
	busy         bool
	shipping     *domain.ShippingAddress
	clientSecret string
	orderID      string
	idemKey      string
	attempt      []byte // fingerprint of the request idemKey was issued for
}

type Option func(*Sequencer)

func WithReturnURL(u string) Option          { return func(s *Sequencer) { s.returnURL = u } }
func WithKeyGenerator(f func() string) Option { return func(s *Sequencer) { s.newKey = f } }
func WithLogger(l *slog.Logger) Option        { return func(s *Sequencer) { s.log = l } }

// New starts a session at StepShipping. Sessions are never persisted.
func New(c Cart, intents IntentClient, payments PaymentConfirmer, opts ...Option) *Sequencer {
	s := &Sequencer{
		cart:     c,
		intents:  intents,
		payments: payments,
		newKey:   func() string { return uuid.NewString() },
		log:      logging.New("checkout"),
		step:     StepShipping,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Step: s.step, Busy: s.busy, OrderID: s.orderID}
	if s.shipping != nil {
		cp := *s.shipping
		st.Shipping = &cp
	}
	return st
}

// SubmitShipping validates the form and requests the checkout intent. Field
// problems come back as domain.FieldErrors without any network call.
func (s *Sequencer) SubmitShipping(ctx context.Context, addr domain.ShippingAddress) error {
	s.mu.Lock()
	if err := s.guard(evIntentCreated); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := addr.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	lines := s.cart.Items()
	if len(lines) == 0 {
		s.mu.Unlock()
		return ErrEmptyCart
	}

	req := IntentRequest{ShippingAddress: addr, Items: make([]IntentItem, 0, len(lines))}
	for _, li := range lines {
		req.Items = append(req.Items, IntentItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			Price:     li.Product.Price,
		})
	}
	// retry of the same request keeps its key; anything else is a new attempt
	fp, _ := json.Marshal(req)
	if s.idemKey == "" || !bytes.Equal(fp, s.attempt) {
		s.idemKey = s.newKey()
		s.attempt = fp
	}
	req.IdempotencyKey = s.idemKey
	s.busy = true
	s.mu.Unlock()

	resp, err := s.intents.CreateCheckoutIntent(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.log.Warn("checkout intent failed", "err", err, "items", len(req.Items))
		return fmt.Errorf("create checkout intent: %w", err)
	}
	if resp.ClientSecret == "" || resp.OrderID == "" {
		return fmt.Errorf("create checkout intent: %w", ErrMissingClientSecret)
	}

	step, _ := next(s.step, evIntentCreated)
	s.step = step
	s.shipping = &addr
	s.clientSecret = resp.ClientSecret
	s.orderID = resp.OrderID
	s.log.Info("checkout intent created", "order_id", resp.OrderID)
	return nil
}

// Back returns to the shipping step keeping the entered address. The next
// submission starts a new attempt with a fresh idempotency key.
func (s *Sequencer) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(evBack); err != nil {
		return err
	}
	step, _ := next(s.step, evBack)
	s.step = step
	s.clientSecret = ""
	s.orderID = ""
	s.idemKey = ""
	s.attempt = nil
	return nil
}

// Confirm hands the client secret to the payment processor. The cart is
// cleared only after the processor reports success.
func (s *Sequencer) Confirm(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if err := s.guard(evConfirmed); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	if s.clientSecret == "" {
		s.mu.Unlock()
		return Result{}, ErrMissingClientSecret
	}
	req := ConfirmRequest{
		ClientSecret: s.clientSecret,
		ReturnURL:    s.returnURL,
	}
	if s.shipping != nil {
		req.Billing = BillingFromShipping(*s.shipping)
	}
	orderID := s.orderID
	s.busy = true
	s.mu.Unlock()

	err := s.payments.ConfirmPayment(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.log.Warn("payment confirmation failed", "order_id", orderID, "err", err)
		var perr *PaymentError
		if errors.As(err, &perr) {
			return Result{}, perr
		}
		return Result{}, &PaymentError{Reason: err.Error()}
	}

	s.cart.Clear()
	step, _ := next(s.step, evConfirmed)
	s.step = step
	s.clientSecret = ""
	s.log.Info("payment confirmed", "order_id", orderID)
	return Result{OrderID: orderID}, nil
}

// guard must be called with mu held.
func (s *Sequencer) guard(ev event) error {
	if s.busy {
		return ErrInFlight
	}
	_, err := next(s.step, ev)
	return err
}

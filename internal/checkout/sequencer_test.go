package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/storefront-api/internal/cart"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntents struct {
	mu    sync.Mutex
	calls []IntentRequest
	resp  IntentResponse
	err   error
	block chan struct{}
}

func (f *fakeIntents) CreateCheckoutIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.resp, f.err
}

type fakePayments struct {
	calls []ConfirmRequest
	err   error
}

func (f *fakePayments) ConfirmPayment(_ context.Context, req ConfirmRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "+1 (555) 123-4567",
		Address:    "12 Analytical St",
		City:       "London",
		State:      "LDN",
		PostalCode: "10001",
		Country:    "GB",
	}
}

func cartWithP1(t *testing.T) *cart.Store {
	t.Helper()
	c := cart.NewStore(cart.NewMemoryStorage(), cart.WithLogger(logging.Discard()))
	require.NoError(t, c.AddItem(domain.Product{ID: "p1", Name: "Shoe", Price: decimal.NewFromInt(10), Stock: 5}, 2))
	return c
}

func keys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func newSequencer(c Cart, in IntentClient, pay PaymentConfirmer) *Sequencer {
	return New(c, in, pay,
		WithLogger(logging.Discard()),
		WithKeyGenerator(keys()),
		WithReturnURL("https://shop.example.com/checkout/success"))
}

func TestCheckout_HappyPath(t *testing.T) {
	ctx := context.Background()
	c := cartWithP1(t)
	intents := &fakeIntents{resp: IntentResponse{ClientSecret: "cs_1", OrderID: "o1"}}
	payments := &fakePayments{}
	s := newSequencer(c, intents, payments)

	assert.Equal(t, StepShipping, s.State().Step)
	require.NoError(t, s.SubmitShipping(ctx, validAddress()))

	require.Len(t, intents.calls, 1)
	req := intents.calls[0]
	require.Len(t, req.Items, 1)
	assert.Equal(t, "p1", req.Items[0].ProductID)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, req.Items[0].Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "key-1", req.IdempotencyKey)
	assert.Equal(t, StepPayment, s.State().Step)
	assert.Equal(t, "o1", s.State().OrderID)

	res, err := s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o1", res.OrderID)
	assert.Equal(t, StepSuccess, s.State().Step)
	assert.Empty(t, c.Items())
	assert.Equal(t, domain.Cents(0), c.Total())

	require.Len(t, payments.calls, 1)
	assert.Equal(t, "cs_1", payments.calls[0].ClientSecret)
	assert.Equal(t, "Ada Lovelace", payments.calls[0].Billing.Name)
	assert.Equal(t, "10001", payments.calls[0].Billing.Address.PostalCode)
	assert.Equal(t, "https://shop.example.com/checkout/success", payments.calls[0].ReturnURL)

	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestCheckout_DeclineKeepsCart(t *testing.T) {
	ctx := context.Background()
	c := cartWithP1(t)
	payments := &fakePayments{err: &PaymentError{Code: "card_declined", Reason: "Your card was declined."}}
	s := newSequencer(c, &fakeIntents{resp: IntentResponse{ClientSecret: "cs_1", OrderID: "o1"}}, payments)

	require.NoError(t, s.SubmitShipping(ctx, validAddress()))
	_, err := s.Confirm(ctx)

	var perr *PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "card_declined", perr.Code)
	assert.Equal(t, StepPayment, s.State().Step)
	assert.Len(t, c.Items(), 1)
	assert.Equal(t, domain.Cents(2000), c.Total())

	// shopper may retry with another card
	payments.err = nil
	_, err = s.Confirm(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Items())
}

func TestCheckout_TransportErrorBecomesPaymentError(t *testing.T) {
	ctx := context.Background()
	s := newSequencer(cartWithP1(t),
		&fakeIntents{resp: IntentResponse{ClientSecret: "cs_1", OrderID: "o1"}},
		&fakePayments{err: errors.New("connection reset")})

	require.NoError(t, s.SubmitShipping(ctx, validAddress()))
	_, err := s.Confirm(ctx)
	var perr *PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "connection reset", perr.Reason)
}

func TestCheckout_ConfirmWithoutSecretIsRejected(t *testing.T) {
	payments := &fakePayments{}
	s := newSequencer(cartWithP1(t), &fakeIntents{}, payments)

	_, err := s.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrWrongStep)

	// force the payment step with no secret held
	s.step = StepPayment
	_, err = s.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrMissingClientSecret)
	assert.Empty(t, payments.calls)
}

func TestCheckout_InvalidShippingNeverHitsNetwork(t *testing.T) {
	intents := &fakeIntents{}
	s := newSequencer(cartWithP1(t), intents, &fakePayments{})

	addr := validAddress()
	addr.Email = "not-an-email"
	addr.Phone = "123"
	err := s.SubmitShipping(context.Background(), addr)

	var fe domain.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "email")
	assert.Contains(t, fe, "phone")
	assert.Empty(t, intents.calls)
	assert.Equal(t, StepShipping, s.State().Step)
}

func TestCheckout_EmptyCart(t *testing.T) {
	intents := &fakeIntents{}
	c := cart.NewStore(cart.NewMemoryStorage(), cart.WithLogger(logging.Discard()))
	s := newSequencer(c, intents, &fakePayments{})

	assert.ErrorIs(t, s.SubmitShipping(context.Background(), validAddress()), ErrEmptyCart)
	assert.Empty(t, intents.calls)
}

func TestCheckout_IntentFailureStaysOnShippingAndReusesKey(t *testing.T) {
	ctx := context.Background()
	intents := &fakeIntents{err: errors.New("503")}
	s := newSequencer(cartWithP1(t), intents, &fakePayments{})

	assert.Error(t, s.SubmitShipping(ctx, validAddress()))
	assert.Equal(t, StepShipping, s.State().Step)

	intents.err = nil
	intents.resp = IntentResponse{ClientSecret: "cs_1", OrderID: "o1"}
	require.NoError(t, s.SubmitShipping(ctx, validAddress()))

	require.Len(t, intents.calls, 2)
	assert.Equal(t, intents.calls[0].IdempotencyKey, intents.calls[1].IdempotencyKey)
}

func TestCheckout_ChangedRequestGetsNewKey(t *testing.T) {
	ctx := context.Background()
	intents := &fakeIntents{err: errors.New("503")}
	s := newSequencer(cartWithP1(t), intents, &fakePayments{})

	assert.Error(t, s.SubmitShipping(ctx, validAddress()))
	addr := validAddress()
	addr.City = "Paris"
	assert.Error(t, s.SubmitShipping(ctx, addr))

	require.Len(t, intents.calls, 2)
	assert.Equal(t, "key-1", intents.calls[0].IdempotencyKey)
	assert.Equal(t, "key-2", intents.calls[1].IdempotencyKey)
}

func TestCheckout_BackKeepsShippingAndRotatesKey(t *testing.T) {
	ctx := context.Background()
	intents := &fakeIntents{resp: IntentResponse{ClientSecret: "cs_1", OrderID: "o1"}}
	s := newSequencer(cartWithP1(t), intents, &fakePayments{})

	require.NoError(t, s.SubmitShipping(ctx, validAddress()))
	require.NoError(t, s.Back())

	st := s.State()
	assert.Equal(t, StepShipping, st.Step)
	require.NotNil(t, st.Shipping)
	assert.Equal(t, "Ada Lovelace", st.Shipping.FullName)
	assert.Empty(t, st.OrderID)

	assert.ErrorIs(t, s.Back(), ErrWrongStep)

	require.NoError(t, s.SubmitShipping(ctx, *st.Shipping))
	require.Len(t, intents.calls, 2)
	assert.NotEqual(t, intents.calls[0].IdempotencyKey, intents.calls[1].IdempotencyKey)
}

func TestCheckout_NoDoubleSubmit(t *testing.T) {
	ctx := context.Background()
	intents := &fakeIntents{
		resp:  IntentResponse{ClientSecret: "cs_1", OrderID: "o1"},
		block: make(chan struct{}),
	}
	s := newSequencer(cartWithP1(t), intents, &fakePayments{})

	done := make(chan error, 1)
	go func() { done <- s.SubmitShipping(ctx, validAddress()) }()

	require.Eventually(t, func() bool { return s.State().Busy }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.SubmitShipping(ctx, validAddress()), ErrInFlight)
	assert.ErrorIs(t, s.Back(), ErrInFlight)
	_, err := s.Confirm(ctx)
	assert.ErrorIs(t, err, ErrInFlight)

	close(intents.block)
	require.NoError(t, <-done)
	assert.False(t, s.State().Busy)
	assert.Equal(t, StepPayment, s.State().Step)

	intents.mu.Lock()
	defer intents.mu.Unlock()
	assert.Len(t, intents.calls, 1)
}

func TestNext_TransitionTable(t *testing.T) {
	cases := []struct {
		from Step
		ev   event
		want Step
		ok   bool
	}{
		{StepShipping, evIntentCreated, StepPayment, true},
		{StepShipping, evBack, StepShipping, false},
		{StepShipping, evConfirmed, StepShipping, false},
		{StepPayment, evBack, StepShipping, true},
		{StepPayment, evConfirmed, StepSuccess, true},
		{StepPayment, evIntentCreated, StepPayment, false},
		{StepSuccess, evBack, StepSuccess, false},
		{StepSuccess, evConfirmed, StepSuccess, false},
	}
	for _, tc := range cases {
		got, err := next(tc.from, tc.ev)
		assert.Equal(t, tc.want, got, "%s/%s", tc.from, tc.ev)
		if tc.ok {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrWrongStep)
		}
	}
}

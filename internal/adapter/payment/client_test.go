package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aq2208/storefront-api/internal/checkout"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Key: "sk_test", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestCreateIntent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "u-1:k-1", r.Header.Get("Idempotency-Key"))
		var body createIntentReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(3998), body.Amount)
		assert.Equal(t, "usd", body.Currency)
		assert.Equal(t, "o-1", body.Metadata["orderId"])
		_, _ = w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret_x","status":"requires_payment_method"}`))
	})

	pi, err := c.CreateIntent(context.Background(), usecase.PaymentIntentInput{
		Amount: domain.Cents(3998), Currency: "USD", IdempotencyKey: "u-1:k-1",
		Metadata: map[string]string{"orderId": "o-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret_x"}, pi)
}

func TestConfirmPayment(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_1/confirm", r.URL.Path)
		var body checkout.ConfirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada", body.Billing.Name)
		assert.Equal(t, "https://shop.test/done", body.ReturnURL)
		_, _ = w.Write([]byte(`{"id":"pi_1","status":"succeeded"}`))
	})

	err := c.ConfirmPayment(context.Background(), checkout.ConfirmRequest{
		ClientSecret: "pi_1_secret_x",
		Billing:      checkout.BillingDetails{Name: "Ada"},
		ReturnURL:    "https://shop.test/done",
	})
	require.NoError(t, err)
}

func TestConfirmPayment_Declined(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"Your card was declined."}}`))
	})

	err := c.ConfirmPayment(context.Background(), checkout.ConfirmRequest{ClientSecret: "pi_1_secret_x"})
	var perr *checkout.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "card_declined", perr.Code)
	assert.Equal(t, "Your card was declined.", perr.Reason)
}

func TestConfirmPayment_BadSecret(t *testing.T) {
	c := newClient(t, func(http.ResponseWriter, *http.Request) { t.Fatal("no request expected") })
	err := c.ConfirmPayment(context.Background(), checkout.ConfirmRequest{ClientSecret: "garbage"})
	assert.ErrorIs(t, err, ErrBadClientSecret)
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"no"}}`))
	})
	req := checkout.ConfirmRequest{ClientSecret: "pi_1_secret_x"}

	// declines keep the circuit closed
	for i := 0; i < 6; i++ {
		var perr *checkout.PaymentError
		require.ErrorAs(t, c.ConfirmPayment(context.Background(), req), &perr)
	}

	fail.Store(true)
	for i := 0; i < 5; i++ {
		require.Error(t, c.ConfirmPayment(context.Background(), req))
	}
	before := calls.Load()
	err := c.ConfirmPayment(context.Background(), req)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, before, calls.Load())
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

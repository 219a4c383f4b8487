package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aq2208/storefront-api/internal/checkout"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/sony/gobreaker/v2"
)

var ErrBadClientSecret = errors.New("malformed client secret")

// Client talks to the payment processor REST API. Server code builds it
// with the secret key and uses CreateIntent; the shopper client builds it
// with the published key and uses ConfirmPayment.
type Client struct {
	base *url.URL
	key  string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[response]
	log  *slog.Logger
}

var (
	_ usecase.PaymentGateway    = (*Client)(nil)
	_ checkout.PaymentConfirmer = (*Client)(nil)
)

type Options struct {
	BaseURL string
	Key     string
	Timeout time.Duration
	HTTP    *http.Client // optional
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid payment base url %q", opts.BaseURL)
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := logging.New("payment")
	cb := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		// answers from the processor, declines included, mean it is up
		IsSuccessful: func(err error) bool {
			var ae *apiError
			return err == nil || errors.As(err, &ae)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{base: u, key: opts.Key, http: hc, cb: cb, log: log}, nil
}

type response struct {
	status int
	body   []byte
}

// apiError is a 4xx answer from the processor.
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("payment api %d: %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) post(ctx context.Context, path string, body any, hdr http.Header) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	u := c.base.ResolveReference(&url.URL{Path: path})

	res, err := c.cb.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(raw))
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.key)
		for k, vv := range hdr {
			for _, v := range vv {
				req.Header.Add(k, v)
			}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return response{}, err
		}
		switch {
		case resp.StatusCode >= 500:
			return response{}, fmt.Errorf("payment api %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return response{}, decodeAPIError(resp.StatusCode, b)
		}
		return response{status: resp.StatusCode, body: b}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.body, nil
}

func decodeAPIError(status int, body []byte) *apiError {
	var env struct {
		Error apiError `json:"error"`
	}
	_ = json.Unmarshal(body, &env)
	e := env.Error
	e.Status = status
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return &e
}

type createIntentReq struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type intentResp struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// CreateIntent creates a payment intent for the amount in minor units. The
// idempotency key is forwarded so a retried create returns the same intent.
func (c *Client) CreateIntent(ctx context.Context, in usecase.PaymentIntentInput) (usecase.PaymentIntent, error) {
	hdr := http.Header{}
	if in.IdempotencyKey != "" {
		hdr.Set("Idempotency-Key", in.IdempotencyKey)
	}
	body, err := c.post(ctx, "/v1/payment_intents", createIntentReq{
		Amount:   int64(in.Amount),
		Currency: strings.ToLower(in.Currency),
		Metadata: in.Metadata,
	}, hdr)
	if err != nil {
		return usecase.PaymentIntent{}, err
	}
	var out intentResp
	if err := json.Unmarshal(body, &out); err != nil {
		return usecase.PaymentIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	if out.ID == "" || out.ClientSecret == "" {
		return usecase.PaymentIntent{}, errors.New("payment api: intent without id or client secret")
	}
	return usecase.PaymentIntent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

// ConfirmPayment confirms the intent behind req.ClientSecret. Declines and
// other 4xx answers come back as *checkout.PaymentError.
func (c *Client) ConfirmPayment(ctx context.Context, req checkout.ConfirmRequest) error {
	id, err := intentID(req.ClientSecret)
	if err != nil {
		return err
	}
	body, err := c.post(ctx, "/v1/payment_intents/"+url.PathEscape(id)+"/confirm", req, nil)
	var ae *apiError
	if errors.As(err, &ae) {
		return &checkout.PaymentError{Code: ae.Code, Reason: ae.Message}
	}
	if err != nil {
		return err
	}

	var out intentResp
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode confirm: %w", err)
	}
	switch out.Status {
	case "succeeded", "processing":
		return nil
	case "requires_payment_method":
		return &checkout.PaymentError{Code: "card_declined", Reason: "Your payment method was declined."}
	default:
		c.log.Warn("unexpected intent status", "intent_id", id, "status", out.Status)
		return &checkout.PaymentError{Code: out.Status, Reason: "Payment could not be completed."}
	}
}

// intentID extracts "pi_123" from a client secret of the form
// "pi_123_secret_abc".
func intentID(secret string) (string, error) {
	id, _, ok := strings.Cut(secret, "_secret_")
	if !ok || id == "" {
		return "", ErrBadClientSecret
	}
	return id, nil
}

package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aq2208/storefront-api/internal/checkout"
	domain "github.com/aq2208/storefront-api/internal/entity"
)

const idempotencyHeader = "X-Idempotency-Key"

var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	Status int
	Code   string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api %d: %s", e.Status, e.Code)
}

// Client is the shopper side of the storefront API.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

var _ checkout.IntentClient = (*Client)(nil)

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, in, out any, hdr http.Header) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		ae := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, ae)
		if ae.Code == "" {
			ae.Code = http.StatusText(resp.StatusCode)
		}
		return ae
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Login exchanges credentials for a session token kept by the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/token", "", map[string]string{"email": email, "password": password}, &out, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) Products(ctx context.Context, category string) ([]domain.Product, error) {
	var out struct {
		Products []domain.Product `json:"products"`
	}
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if err := c.do(ctx, http.MethodGet, "/v1/products", q.Encode(), nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) CreateCheckoutIntent(ctx context.Context, req checkout.IntentRequest) (checkout.IntentResponse, error) {
	if !c.LoggedIn() {
		return checkout.IntentResponse{}, ErrNotLoggedIn
	}
	hdr := http.Header{}
	hdr.Set(idempotencyHeader, req.IdempotencyKey)
	var out checkout.IntentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout-intent", "", req, &out, hdr); err != nil {
		return checkout.IntentResponse{}, err
	}
	return out, nil
}

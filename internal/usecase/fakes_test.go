package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
)

type memOrders struct {
	mu      sync.Mutex
	byID    map[string]domain.Order
	keys    map[string]string
	gets    int
	updates int
	err     error
	// errAfterWrite stores the order and still fails, like a lost commit ack.
	errAfterWrite error
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[string]domain.Order{}, keys: map[string]string{}}
}

func (m *memOrders) Create(_ context.Context, o *domain.Order, idemKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byID[o.ID]; ok {
		return ErrDuplicate
	}
	m.byID[o.ID] = *o
	m.keys[o.UserID+":"+idemKey] = o.ID
	return m.errAfterWrite
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) GetByPaymentIntent(_ context.Context, pi string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.PaymentIntentID == pi {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrders) List(_ context.Context, f OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.byID {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memOrders) UpdateStatusIf(_ context.Context, id string, from, to domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != from {
		return false, nil
	}
	m.updates++
	o.Status = to
	m.byID[id] = o
	return true, nil
}

func (m *memOrders) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = o
}

func (m *memOrders) status(id string) domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Status
}

type memCatalog struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	decremented [][]domain.OrderItem
	decErr      error
}

func newMemCatalog(ps ...domain.Product) *memCatalog {
	c := &memCatalog{products: map[string]domain.Product{}}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

func (c *memCatalog) List(_ context.Context, category string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range c.products {
		if category == "" || p.Category.ID == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (c *memCatalog) GetByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *memCatalog) DecrementStock(_ context.Context, items []domain.OrderItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decErr != nil {
		return c.decErr
	}
	c.decremented = append(c.decremented, items)
	return nil
}

func (c *memCatalog) Insert(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = *p
	return nil
}

func (c *memCatalog) Update(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; !ok {
		return ErrNotFound
	}
	c.products[p.ID] = *p
	return nil
}

func (c *memCatalog) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return ErrNotFound
	}
	delete(c.products, id)
	return nil
}

type memOutbox struct {
	mu     sync.Mutex
	nextID int64
	rows   []OutboxMessage
	sent   map[int64]bool
	failed map[int64]time.Time
}

func newMemOutbox() *memOutbox {
	return &memOutbox{sent: map[int64]bool{}, failed: map[int64]time.Time{}}
}

func (o *memOutbox) Insert(_ context.Context, channel, aggregateID string, payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	o.rows = append(o.rows, OutboxMessage{ID: o.nextID, Channel: channel, AggregateID: aggregateID, Payload: payload})
	return nil
}

func (o *memOutbox) FetchPending(_ context.Context, limit int) ([]OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []OutboxMessage
	for _, r := range o.rows {
		if !o.sent[r.ID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (o *memOutbox) MarkSent(_ context.Context, id int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[id] = true
	return nil
}

func (o *memOutbox) MarkFailed(_ context.Context, id int64, next time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[id] = next
	for i := range o.rows {
		if o.rows[i].ID == id {
			o.rows[i].RetryCount++
		}
	}
	return nil
}

func (o *memOutbox) channels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, r := range o.rows {
		out = append(out, r.Channel)
	}
	return out
}

type memIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newMemIdem() *memIdem {
	return &memIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if m.locks[k] {
		return false, nil
	}
	m.locks[k] = true
	return true, nil
}

func (m *memIdem) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

func (m *memIdem) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

type memCache struct {
	mu    sync.Mutex
	views map[string]StatusView
}

func newMemCache() *memCache { return &memCache{views: map[string]StatusView{}} }

func (c *memCache) SetStatus(_ context.Context, v StatusView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[v.OrderID] = v
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id string) (StatusView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	return v, ok, nil
}

// fakeGateway replays the first intent created under an idempotency key.
type fakeGateway struct {
	calls   []PaymentIntentInput
	err     error
	created map[string]PaymentIntent
}

func (g *fakeGateway) CreateIntent(_ context.Context, in PaymentIntentInput) (PaymentIntent, error) {
	g.calls = append(g.calls, in)
	if g.err != nil {
		return PaymentIntent{}, g.err
	}
	if pi, ok := g.created[in.IdempotencyKey]; ok {
		return pi, nil
	}
	if g.created == nil {
		g.created = map[string]PaymentIntent{}
	}
	n := len(g.created) + 1
	pi := PaymentIntent{ID: "pi_" + string(rune('0'+n)), ClientSecret: "cs_" + string(rune('0'+n))}
	g.created[in.IdempotencyKey] = pi
	return pi, nil
}

type fakePublisher struct {
	published []string
	failOn    map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, routingKey, messageID string, _ []byte) error {
	if p.failOn[routingKey] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, routingKey+"#"+messageID)
	return nil
}

func shoe(price string, stock int) domain.Product {
	return domain.Product{ID: "p1", Name: "Shoe", Price: decimal.RequireFromString(price), Stock: stock}
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "555-123-4567",
		Address:    "12 Analytical St",
		City:       "London",
		State:      "LDN",
		PostalCode: "10001",
		Country:    "GB",
	}
}

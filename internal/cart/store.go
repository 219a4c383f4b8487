package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
	ErrNotInCart       = errors.New("product not in cart")
)

const snapshotVersion = 1

// LineItem is one product in the cart. Product is a snapshot taken when the
// line was added and is not re-synced with the catalog.
type LineItem struct {
	ID        string         `json:"id"`
	ProductID string         `json:"productId"`
	Quantity  int            `json:"quantity"`
	Product   domain.Product `json:"product"`
}

func (li LineItem) Subtotal() domain.Cents {
	price, _ := li.Product.PriceCents() // validated when the line was stored
	return price.Mul(li.Quantity)
}

type snapshot struct {
	Version int        `json:"version"`
	Items   []LineItem `json:"items"`
}

// Store is the shopper's cart. Every successful mutation recomputes the
// total and persists a snapshot before returning.
type Store struct {
	mu          sync.Mutex
	items       []LineItem
	total       domain.Cents
	storage     Storage
	log         *slog.Logger
	now         func() time.Time
	saveTimeout time.Duration
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option       { return func(s *Store) { s.log = l } }
func WithClock(now func() time.Time) Option  { return func(s *Store) { s.now = now } }
func WithSaveTimeout(d time.Duration) Option { return func(s *Store) { s.saveTimeout = d } }

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:     storage,
		log:         logging.New("cart"),
		now:         time.Now,
		saveTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory cart with the persisted snapshot.
// Missing or unreadable snapshots leave an empty cart.
func (s *Store) Hydrate(ctx context.Context) error {
	raw, err := s.storage.Load(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		s.reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn("discarding unreadable cart snapshot", "err", err)
		s.reset(nil)
		return nil
	}

	kept := make([]LineItem, 0, len(snap.Items))
	seen := map[string]bool{}
	for _, li := range snap.Items {
		if seen[li.ProductID] || checkLine(li.Product, li.Quantity) != nil {
			s.log.Warn("dropping invalid cart line", "product_id", li.ProductID, "quantity", li.Quantity)
			continue
		}
		seen[li.ProductID] = true
		kept = append(kept, li)
	}
	s.reset(kept)
	return nil
}

func (s *Store) reset(items []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.recompute()
}

// AddItem merges quantity into the product's line, creating it if needed.
// A result above the product's stock is rejected and the cart is unchanged.
func (s *Store) AddItem(p domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(p.ID)
	proposed := quantity
	if idx >= 0 {
		proposed += s.items[idx].Quantity
	}
	if err := checkLine(p, proposed); err != nil {
		return err
	}

	if idx >= 0 {
		s.items[idx].Quantity = proposed
		s.items[idx].Product = p
	} else {
		s.items = append(s.items, LineItem{
			ID:        fmt.Sprintf("%s-%d", p.ID, s.now().UnixMilli()),
			ProductID: p.ID,
			Quantity:  proposed,
			Product:   p,
		})
	}
	s.commit()
	return nil
}

// RemoveItem is idempotent.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	s.commit()
}

// UpdateQuantity replaces the quantity of an existing line.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return ErrNotInCart
	}
	if err := checkLine(s.items[idx].Product, quantity); err != nil {
		return err
	}
	s.items[idx].Quantity = quantity
	s.commit()
	return nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.commit()
}

func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LineItem(nil), s.items...)
}

func (s *Store) Total() domain.Cents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Count is the number of units in the cart (navigation badge).
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, li := range s.items {
		n += li.Quantity
	}
	return n
}

func (s *Store) indexOf(productID string) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// commit must be called with mu held.
func (s *Store) commit() {
	s.recompute()
	s.persist()
}

func (s *Store) recompute() {
	var total domain.Cents
	for _, li := range s.items {
		total += li.Subtotal()
	}
	s.total = total
}

func (s *Store) persist() {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}
	raw, err := json.Marshal(snapshot{Version: snapshotVersion, Items: items})
	if err != nil {
		s.log.Error("marshal cart snapshot", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.storage.Save(ctx, StorageKey, raw); err != nil {
		// in-memory state stays authoritative; next mutation retries the write
		s.log.Error("persist cart snapshot", "err", err)
	}
}

func checkLine(p domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Stock {
		return ErrExceedsStock
	}
	if _, err := p.PriceCents(); err != nil {
		return err
	}
	return nil
}

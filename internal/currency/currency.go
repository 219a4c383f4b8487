// Package currency converts base (USD) cent amounts for display. Nothing here
// is ever used to compute or store totals.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aq2208/storefront-api/internal/cart"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const StorageKey = "currency-store"

var ErrUnknownCurrency = errors.New("unknown currency")

type Currency struct {
	Code   string          `json:"code"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}

var defaults = []Currency{
	{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1)},
	{Code: "EUR", Symbol: "€", Rate: decimal.RequireFromString("0.92")},
	{Code: "KES", Symbol: "KSh", Rate: decimal.RequireFromString("132.50")},
	{Code: "TZS", Symbol: "TSh", Rate: decimal.RequireFromString("2565.00")},
}

// Defaults returns the supported currencies, base currency first.
func Defaults() []Currency {
	return append([]Currency(nil), defaults...)
}

func Lookup(code string) (Currency, error) {
	for _, c := range defaults {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return Currency{}, fmt.Errorf("%q: %w", code, ErrUnknownCurrency)
}

// Convert returns the amount in this currency's major units, rounded to 2 places.
func (c Currency) Convert(amount domain.Cents) decimal.Decimal {
	return amount.Decimal().Mul(c.Rate).Round(2)
}

// Format renders amount like "KSh1,325.00". Grouping follows English number
// rules; the symbol is the store's own, not the CLDR one.
func (c Currency) Format(amount domain.Cents) string {
	v := c.Convert(amount)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	return sign + c.Symbol + printer.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(2)))
}

var printer = message.NewPrinter(language.English)

// Selector holds the shopper's display currency and persists the choice.
type Selector struct {
	mu      sync.RWMutex
	current Currency
	storage cart.Storage
	log     *slog.Logger
}

func NewSelector(storage cart.Storage) *Selector {
	return &Selector{current: defaults[0], storage: storage, log: logging.New("currency")}
}

type persisted struct {
	Code string `json:"code"`
}

// Hydrate restores the persisted choice; unknown codes fall back to USD.
func (s *Selector) Hydrate(ctx context.Context) error {
	raw, err := s.storage.Load(ctx, StorageKey)
	if errors.Is(err, cart.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load currency: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("discarding unreadable currency selection", "err", err)
		return nil
	}
	c, err := Lookup(p.Code)
	if err != nil {
		s.log.Warn("unknown persisted currency", "code", p.Code)
		c = defaults[0]
	}
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
	return nil
}

func (s *Selector) Current() Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Selector) Set(ctx context.Context, code string) error {
	c, err := Lookup(code)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	raw, _ := json.Marshal(persisted{Code: c.Code})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.storage.Save(ctx, StorageKey, raw); err != nil {
		s.log.Error("persist currency", "err", err)
	}
	return nil
}

// Next cycles through the supported currencies.
func (s *Selector) Next(ctx context.Context) Currency {
	cur := s.Current()
	next := defaults[0]
	for i, c := range defaults {
		if c.Code == cur.Code {
			next = defaults[(i+1)%len(defaults)]
			break
		}
	}
	_ = s.Set(ctx, next.Code)
	return next
}

func (s *Selector) Format(amount domain.Cents) string {
	return s.Current().Format(amount)
}

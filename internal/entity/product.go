package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrPricePrecision = errors.New("price has sub-cent precision")

// Cents is an amount in the smallest unit of the base currency (USD).
type Cents int64

func (c Cents) Mul(qty int) Cents { return c * Cents(qty) }

// Decimal returns the amount in major units, e.g. 1999 -> 19.99.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// CentsFromDecimal converts a major-unit price without rounding.
func CentsFromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrPricePrecision)
	}
	return Cents(scaled.IntPart()), nil
}

type Category struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Product is the catalog record as seen by the cart and the checkout.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"-"`
	Stock    int             `json:"stock" validate:"min=0"`
	Images   []string        `json:"images" validate:"min=1,dive,required"`
	Category Category        `json:"category"`
}

var productMessages = map[string]string{
	"name":          "Name is required.",
	"price":         "Price must be zero or more with at most two decimals.",
	"stock":         "Stock must be greater than or equal to 0.",
	"images":        "At least one image is required.",
	"category.id":   "Category is required.",
	"category.name": "Category name is required.",
}

// Validate checks a catalog write. Errors are FieldErrors keyed by json path.
func (p *Product) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	out := FieldErrors{}
	err := formValidator().Struct(p)
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			key := fieldPath(fe.Namespace())
			if strings.HasPrefix(key, "images[") {
				key = "images"
			}
			out[key] = productMessages[key]
		}
	case err != nil:
		return fmt.Errorf("validate product: %w", err)
	}
	if _, perr := p.PriceCents(); perr != nil {
		out["price"] = productMessages["price"]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (p Product) PriceCents() (Cents, error) {
	if p.Price.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return CentsFromDecimal(p.Price)
}

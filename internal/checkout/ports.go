package checkout

import (
	"context"

	"github.com/aq2208/storefront-api/internal/cart"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
)

type IntentItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type IntentRequest struct {
	Items           []IntentItem           `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	IdempotencyKey  string                 `json:"-"`
}

type IntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      string `json:"orderId"`
}

type BillingAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type BillingDetails struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Address BillingAddress `json:"address"`
}

func BillingFromShipping(s domain.ShippingAddress) BillingDetails {
	return BillingDetails{
		Name:  s.FullName,
		Email: s.Email,
		Phone: s.Phone,
		Address: BillingAddress{
			Line1:      s.Address,
			City:       s.City,
			State:      s.State,
			PostalCode: s.PostalCode,
			Country:    s.Country,
		},
	}
}

type ConfirmRequest struct {
	ClientSecret string         `json:"client_secret"`
	Billing      BillingDetails `json:"billing_details"`
	ReturnURL    string         `json:"return_url"`
}

// IntentClient creates the pending order and its payment intent.
type IntentClient interface {
	CreateCheckoutIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}

// PaymentConfirmer confirms a payment intent with the processor. A decline is
// reported as *PaymentError.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, req ConfirmRequest) error
}

type Cart interface {
	Items() []cart.LineItem
	Clear()
}

var _ Cart = (*cart.Store)(nil)

package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidStatus = errors.New("invalid order status")
)

// forward-only transitions; DELIVERED and CANCELLED are terminal
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

type Money struct {
	Cents    Cents
	Currency string
}

type OrderItem struct {
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	PriceCents Cents  `json:"priceCents"`
}

type Order struct {
	ID              string
	UserID          string
	Status          Status
	Amount          Money
	Items           []OrderItem
	Shipping        ShippingAddress
	PaymentIntentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Order) Validate() error {
	if o.Amount.Cents <= 0 || o.Amount.Currency == "" {
		return ErrInvalidAmount
	}
	return nil
}

// ItemsTotal recomputes the order amount from its lines.
func ItemsTotal(items []OrderItem) Cents {
	var total Cents
	for _, it := range items {
		total += it.PriceCents.Mul(it.Quantity)
	}
	return total
}

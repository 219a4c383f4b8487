package usecase

import (
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
)

// Outbox channels double as AMQP routing keys.
const (
	ChannelOrderCreated       = "order.created"
	ChannelOrderStatusChanged = "order.status_changed"
)

type OrderCreatedMsg struct {
	Type            string             `json:"type"`
	OrderID         string             `json:"orderId"`
	UserID          string             `json:"userId"`
	Cents           domain.Cents       `json:"cents"`
	Currency        string             `json:"currency"`
	PaymentIntentID string             `json:"paymentIntentId"`
	Items           []domain.OrderItem `json:"items"`
}

type OrderStatusChangedMsg struct {
	Type    string        `json:"type"`
	OrderID string        `json:"orderId"`
	UserID  string        `json:"userId"`
	From    domain.Status `json:"from"`
	To      domain.Status `json:"to"`
	At      time.Time     `json:"at"`
}

// Payment processor event types handled by reconciliation.
const (
	PaymentSucceeded = "payment_intent.succeeded"
	PaymentFailed    = "payment_intent.payment_failed"
)

// PaymentEvent is the processor's event envelope, as delivered by webhook
// or replayed onto Kafka.
type PaymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			Status           string `json:"status"`
			LastPaymentError *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"last_payment_error,omitempty"`
		} `json:"object"`
	} `json:"data"`
}

func (e PaymentEvent) PaymentIntentID() string { return e.Data.Object.ID }

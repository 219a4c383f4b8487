package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

const IdempotencyHeader = "X-Idempotency-Key"

type CheckoutHandler struct {
	create  *usecase.CreateCheckoutIntent
	timeout time.Duration
}

func NewCheckoutHandler(create *usecase.CreateCheckoutIntent, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{create: create, timeout: timeout}
}

type checkoutIntentReq struct {
	Items           []usecase.CheckoutItemInput `json:"items" binding:"required"`
	ShippingAddress domain.ShippingAddress      `json:"shippingAddress"`
}

// CreateIntent: POST /v1/checkout-intent
func (h *CheckoutHandler) CreateIntent(c *gin.Context) {
	var req checkoutIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.ObserveCheckout("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.create.Execute(ctx, usecase.CreateCheckoutIntentInput{
		UserID:         p.ID,
		IdempotencyKey: c.GetHeader(IdempotencyHeader), // one key per checkout attempt
		Items:          req.Items,
		Shipping:       req.ShippingAddress,
	})
	if err != nil {
		_, code := errorCode(err)
		middleware.ObserveCheckout(code)
		writeError(c, err)
		return
	}

	middleware.ObserveCheckout("created")
	c.JSON(http.StatusCreated, out)
}

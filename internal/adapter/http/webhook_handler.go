package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	reconcile *usecase.ReconcilePayment
	timeout   time.Duration
}

func NewWebhookHandler(reconcile *usecase.ReconcilePayment, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile, timeout: timeout}
}

// Payments: POST /v1/webhooks/payments. The signature is checked by
// middleware before this runs. A non-2xx answer makes the processor retry.
func (h *WebhookHandler) Payments(c *gin.Context) {
	var ev usecase.PaymentEvent
	if err := json.NewDecoder(c.Request.Body).Decode(&ev); err != nil {
		middleware.ObservePaymentEvent("webhook", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.reconcile.Execute(ctx, ev)
	if err != nil {
		_, code := errorCode(err)
		middleware.ObservePaymentEvent("webhook", code)
		logging.From(c).Warn("payment event not applied", "event_id", ev.ID, "type", ev.Type, "err", err)
		writeError(c, err)
		return
	}

	middleware.ObservePaymentEvent("webhook", string(res))
	c.JSON(http.StatusOK, gin.H{"received": true, "result": res})
}

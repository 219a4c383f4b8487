package http

import (
	"context"
	"errors"
	"net/http"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{usecase.ErrMissingIdempotencyKey, http.StatusBadRequest, "missing_idempotency_key"},
	{usecase.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
	{domain.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{usecase.ErrForbidden, http.StatusForbidden, "forbidden"},
	{usecase.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{usecase.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{usecase.ErrDuplicate, http.StatusConflict, "duplicate_request"},
	{usecase.ErrPriceChanged, http.StatusConflict, "price_changed"},
	{usecase.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{usecase.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{usecase.ErrConflict, http.StatusConflict, "conflict"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// errorCode maps a use case error to an HTTP status and a stable code.
func errorCode(err error) (int, string) {
	var fe domain.FieldErrors
	switch {
	case errors.Is(err, usecase.ErrInvalidProduct):
		return http.StatusBadRequest, "invalid_product"
	case errors.As(err, &fe):
		return http.StatusBadRequest, "invalid_shipping_address"
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "server_error"
}

func writeError(c *gin.Context, err error) {
	status, code := errorCode(err)
	if status >= http.StatusInternalServerError {
		logging.From(c).Error("request failed", "err", err)
	}
	body := gin.H{"error": code}
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		body["fields"] = fe
	}
	c.JSON(status, body)
}

package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	update  *usecase.UpdateOrderStatus
	query   *usecase.GetOrder
	timeout time.Duration
}

func NewOrderHandler(update *usecase.UpdateOrderStatus, query *usecase.GetOrder, timeout time.Duration) *OrderHandler {
	return &OrderHandler{update: update, query: query, timeout: timeout}
}

type amountView struct {
	Cents    domain.Cents `json:"cents"`
	Value    string       `json:"value"`
	Currency string       `json:"currency"`
}

type orderView struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId"`
	Status          domain.Status          `json:"status"`
	Amount          amountView             `json:"amount"`
	Items           []domain.OrderItem     `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentIntentID string                 `json:"paymentIntentId"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toOrderView(o *domain.Order) orderView {
	return orderView{
		ID:     o.ID,
		UserID: o.UserID,
		Status: o.Status,
		Amount: amountView{
			Cents:    o.Amount.Cents,
			Value:    o.Amount.Cents.String(),
			Currency: o.Amount.Currency,
		},
		Items:           o.Items,
		ShippingAddress: o.Shipping,
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func viewer(c *gin.Context) usecase.Viewer {
	p, _ := middleware.PrincipalFrom(c)
	return usecase.Viewer{UserID: p.ID, Admin: p.IsAdmin()}
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus: PATCH /v1/orders/:id (ADMIN)
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.update.Execute(ctx, c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.query.Get(ctx, viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *OrderHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	sv, err := h.query.Status(ctx, viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": sv.OrderID, "status": sv.Status})
}

// List: GET /v1/orders?status=&userId=&limit=
func (h *OrderHandler) List(c *gin.Context) {
	f := usecase.OrderFilter{UserID: c.Query("userId")}
	if s := c.Query("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			writeError(c, err)
			return
		}
		f.Status = st
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		f.Limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	orders, err := h.query.List(ctx, viewer(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderView(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

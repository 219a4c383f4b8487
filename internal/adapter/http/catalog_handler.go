package http

import (
	"context"
	"net/http"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CatalogHandler struct {
	catalog *usecase.Catalog
	admin   *usecase.CatalogAdmin
	timeout time.Duration
}

func NewCatalogHandler(catalog *usecase.Catalog, admin *usecase.CatalogAdmin, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, admin: admin, timeout: timeout}
}

type productReq struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Images       []string        `json:"images"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
}

func (r productReq) product() domain.Product {
	return domain.Product{
		Name:     r.Name,
		Price:    r.Price,
		Stock:    r.Stock,
		Images:   r.Images,
		Category: domain.Category{ID: r.CategoryID, Name: r.CategoryName},
	}
}

// List: GET /v1/products?category=
func (h *CatalogHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.List(ctx, c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *CatalogHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create: POST /v1/products (ADMIN)
func (h *CatalogHandler) Create(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.admin.Create(ctx, req.product())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Replace: PATCH /v1/products/:id (ADMIN), full body like Create
func (h *CatalogHandler) Replace(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.admin.Replace(ctx, c.Param("id"), req.product())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) Delete(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.admin.Delete(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

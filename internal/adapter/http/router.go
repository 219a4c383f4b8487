package http

import (
	"log/slog"
	"net/http"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Orders   *OrderHandler
	Checkout *CheckoutHandler
	Catalog  *CatalogHandler
	Tokens   *TokenHandler
	Webhooks *WebhookHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, webhookSig security.SignatureVerifier, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(log))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/token", h.Tokens.IssueToken)
		v1.GET("/products", h.Catalog.List)
		v1.GET("/products/:id", h.Catalog.Get)
		v1.POST("/products", authz.Require(security.RoleAdmin), h.Catalog.Create)
		v1.PATCH("/products/:id", authz.Require(security.RoleAdmin), h.Catalog.Replace)
		v1.DELETE("/products/:id", authz.Require(security.RoleAdmin), h.Catalog.Delete)

		v1.POST("/checkout-intent", authz.Require(), h.Checkout.CreateIntent)

		v1.GET("/orders", authz.Require(), h.Orders.List)
		v1.GET("/orders/:id", authz.Require(), h.Orders.GetOrderByID)
		v1.GET("/orders/:id/status", authz.Require(), h.Orders.GetStatus)
		v1.PATCH("/orders/:id", authz.Require(security.RoleAdmin), h.Orders.UpdateStatus)

		v1.POST("/webhooks/payments", middleware.VerifySignature(webhookSig), h.Webhooks.Payments)
	}

	return r
}

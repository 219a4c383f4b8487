package http

import (
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(email, password string) (security.Principal, error)
}

type TokenIssuer interface {
	Issue(p security.Principal) (string, time.Time, error)
}

type TokenHandler struct {
	users  Authenticator
	tokens TokenIssuer
}

func NewTokenHandler(users Authenticator, tokens TokenIssuer) *TokenHandler {
	return &TokenHandler{users: users, tokens: tokens}
}

type tokenReq struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// IssueToken: POST /v1/token (form or JSON)
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	p, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		logging.From(c).Warn("login rejected", "email", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	signed, exp, err := h.tokens.Issue(p)
	if err != nil {
		logging.From(c).Error("issue token", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(time.Until(exp).Seconds()),
		"user":         gin.H{"id": p.ID, "role": p.Role},
	})
}

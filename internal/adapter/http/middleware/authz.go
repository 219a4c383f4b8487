package middleware

import (
	"net/http"
	"strings"

	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

type TokenParser interface {
	Parse(raw string) (security.Principal, error)
}

type Authz struct {
	tokens TokenParser
}

func NewAuthz(tokens TokenParser) *Authz {
	return &Authz{tokens: tokens}
}

// Require validates the bearer token and, when roles are given, that the
// caller has one of them. It aborts before any handler runs.
func (a *Authz) Require(roles ...security.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		p, err := a.tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}

		if !hasRole(p.Role, roles) {
			forbidden(c, "insufficient_role", "role not allowed")
			return
		}

		c.Set(principalKey, p)
		logging.With(c, logging.From(c).With("user_id", p.ID))
		c.Next()
	}
}

// PrincipalFrom returns the user set by Require.
func PrincipalFrom(c *gin.Context) (security.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return security.Principal{}, false
	}
	p, ok := v.(security.Principal)
	return p, ok
}

func hasRole(have security.Role, allowed []security.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == have {
			return true
		}
	}
	return false
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}

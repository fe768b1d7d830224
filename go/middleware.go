package marketplaceserver

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	apierrors "github.com/Apurer/course-marketplace-api/internal/shared/errors"
)

const principalKey = "marketplace.principal"

// RequireBuyer authenticates the bearer token and stores the principal on the context.
func RequireBuyer(users userports.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondProblem(c, apierrors.ErrUnauthorized.WithDetail("bearer token required"))
			c.Abort()
			return
		}
		principal, err := users.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAdminKey guards operator routes with a static key from configuration.
func RequireAdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-Admin-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			respondProblem(c, apierrors.ErrForbidden.WithDetail("admin key required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) *userports.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*userports.Principal); ok {
			return p
		}
	}
	return nil
}

func buyerID(c *gin.Context) string {
	if p := principalFrom(c); p != nil {
		return p.BuyerID
	}
	return ""
}

package marketplaceserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
)

// ApiHandleFunctions groups the handlers the router mounts.
type ApiHandleFunctions struct {
	AuthAPI     AuthAPI
	PaymentsAPI PaymentsAPI
	AccessAPI   AccessAPI
	CatalogAPI  CatalogAPI
	// Users authenticates bearer tokens for buyer routes.
	Users userports.Service
	// AdminKey enables the operator routes when set.
	AdminKey string
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Ready reports readiness for /healthz; nil means always ready.
	Ready func() error
}

// NewRouter returns a gin engine with recovery and every route mounted.
func NewRouter(handlers ApiHandleFunctions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	return NewRouterWithGinEngine(router, handlers)
}

// NewRouterWithGinEngine mounts the routes on an existing engine so callers control middleware order.
func NewRouterWithGinEngine(router *gin.Engine, handlers ApiHandleFunctions) *gin.Engine {
	router.GET("/healthz", healthz(handlers.Ready))
	if handlers.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(handlers.MetricsHandler))
	}

	router.POST("/auth/register", handlers.AuthAPI.Register)
	router.POST("/auth/login", handlers.AuthAPI.Login)
	router.GET("/courses", handlers.CatalogAPI.ListCourses)
	router.GET("/courses/:courseId", handlers.CatalogAPI.GetCourse)
	// authenticated by signature, not by bearer token
	router.POST("/payments/webhook", handlers.PaymentsAPI.Webhook)

	buyer := router.Group("/", RequireBuyer(handlers.Users))
	buyer.POST("/auth/logout", handlers.AuthAPI.Logout)
	buyer.GET("/courses/:courseId/access", handlers.AccessAPI.CheckAccess)
	buyer.GET("/me/entitlements", handlers.AccessAPI.ListEntitlements)
	buyer.POST("/payments/sessions", handlers.PaymentsAPI.CreateSession)
	buyer.GET("/payments/sessions/:orderCode/status", handlers.PaymentsAPI.GetStatus)
	buyer.POST("/payments/sessions/:orderCode/confirm", handlers.PaymentsAPI.Confirm)
	buyer.POST("/payments/sessions/:orderCode/cancel", handlers.PaymentsAPI.Cancel)

	if handlers.AdminKey != "" {
		admin := router.Group("/admin", RequireAdminKey(handlers.AdminKey))
		admin.POST("/enrollments/:enrollmentId/refund", handlers.AccessAPI.Refund)
	}
	return router
}

func healthz(ready func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			if err := ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

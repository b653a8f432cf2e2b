package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, auth config.AuthConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.Use(mw.JWTAuth(auth))

	api.GET("/customers", h.ListCustomers)
	api.GET("/customers/:id/internal-users", h.ListCustomerInternalUsers)

	api.GET("/instances/:id/tenants", h.ListTenants)
	api.GET("/instances/:id/tenants/resolve", h.ResolveTenant)
	api.DELETE("/instances/:id/tenant-cache", h.InvalidateTenantCache)

	api.GET("/internal-users", h.ListInternalUsers)
	api.POST("/internal-users", h.CreateInternalUser)
	api.POST("/internal-users/password", h.UpdateInternalUserPassword)
	api.DELETE("/internal-users/cache", h.InvalidateInternalUserCache)

	return e
}

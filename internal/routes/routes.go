// Package routes wires the HTTP surface: middleware, API routes, and the
// operational endpoints.
package routes

import (
	"net/http"

	"github.com/dukerupert/skald/internal/handler"
	"github.com/dukerupert/skald/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config carries everything route registration needs.
type Config struct {
	Handler   *handler.Handler
	JWTSecret string
	Metrics   *middleware.Metrics
}

// Setup registers middleware and all routes on the echo instance.
func Setup(e *echo.Echo, cfg Config) {
	e.HideBanner = true
	e.Use(echomw.Recover())
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
	}
	e.Validator = handler.NewValidator()

	h := cfg.Handler
	auth := middleware.Authenticate(cfg.JWTSecret)

	// Operational endpoints, no auth.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	orders := e.Group("/orders", auth)
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/admin/all", h.ListOrders, middleware.RequireAdmin)
	orders.PUT("/admin/:id", h.UpdateOrderStatus, middleware.RequireAdmin)
	orders.GET("/:id", h.GetOrder)
	orders.GET("/:id/invoice", h.GetInvoice)

	e.POST("/tracking", h.ReconcileTracking, auth)

	payments := e.Group("/payments", auth)
	payments.POST("/create-intent", h.CreateIntent)
	payments.POST("/verify", h.VerifyPayment)
	payments.POST("/admin/:id/refund", h.RefundPayment, middleware.RequireAdmin)
}

// Package router wires HTTP routes and their middleware onto an Echo
// instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-engine/internal/handler"
	"github.com/iliyamo/cinema-seat-engine/internal/middleware"
)

// Deps carries everything the routes need.  RateLimit and PricingCache
// may be pass-through middleware when Redis is not configured.
type Deps struct {
	Seats        *handler.SeatHandler
	Sweeper      handler.SweeperStatusProvider
	JWTSecret    string
	RateLimit    echo.MiddlewareFunc
	PricingCache echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication:
// health checks and the read-only seat endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Sweeper != nil {
		e.GET("/healthz/sweeper", handler.SweeperHealth(d.Sweeper))
	}

	pub := e.Group("/v1/showtimes/:id")
	pub.GET("/seats", d.Seats.ListSeats)
	pub.GET("/seats/available", d.Seats.ListAvailableSeats)
	pub.GET("/seats/summary", d.Seats.Summary)
	pub.GET("/pricing", d.Seats.GetPricing, passThrough(d.PricingCache))
}

// RegisterSeatMutations registers reserve, book and release.  They require
// a JWT with the CUSTOMER or ADMIN role and are rate limited per user.
func RegisterSeatMutations(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/showtimes/:id/seats",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
		passThrough(d.RateLimit),
	)
	g.POST("/reserve", d.Seats.Reserve)
	g.POST("/book", d.Seats.Book)
	g.POST("/release", d.Seats.Release)
}

// RegisterAdmin registers administrative endpoints under /v1/admin.  All
// routes require the ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleAdmin),
		passThrough(d.RateLimit),
	)
	g.POST("/showtimes/:id/seats", d.Seats.InitializeSeats)
}

// Register installs every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterSeatMutations(e, d)
	RegisterAdmin(e, d)
}

func passThrough(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

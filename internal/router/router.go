// Package router registers the HTTP routes of the reservation API and
// attaches the authentication, rate-limit and cache middleware to them.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// Deps holds everything the routes need. Redis may be nil, in which case
// rate limiting and response caching are disabled.
type Deps struct {
	Restaurants  *handler.RestaurantHandler
	Reservations *handler.ReservationHandler
	Health       echo.HandlerFunc
	JWTSecret    string
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
}

// RegisterRoutes mounts the health check at /healthz and the API under
// /v1. Browse routes are public and cached; reservation routes require a
// CUSTOMER or ADMIN token; catalog management and staff views require
// ADMIN.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	jwt := middleware.JWTAuth(d.JWTSecret)
	member := []echo.MiddlewareFunc{jwt, middleware.RequireRole(model.RoleCustomer, model.RoleAdmin), limit}
	admin := []echo.MiddlewareFunc{jwt, middleware.RequireRole(model.RoleAdmin), limit}

	v1 := e.Group("/v1")

	// public browse
	r := d.Restaurants
	v1.GET("/restaurants", r.ListRestaurants, limit, cache)
	v1.GET("/restaurants/:id", r.GetRestaurant, limit, cache)
	v1.GET("/restaurants/:id/availability", r.CheckAvailability, limit)

	// catalog management
	v1.POST("/restaurants", r.CreateRestaurant, admin...)
	v1.PUT("/restaurants/:id", r.UpdateRestaurant, admin...)
	v1.DELETE("/restaurants/:id", r.DeleteRestaurant, admin...)
	v1.POST("/restaurants/:id/tables", r.AddTable, admin...)
	v1.PUT("/restaurants/:id/tables/:tableId", r.UpdateTable, admin...)
	v1.PUT("/restaurants/:id/hours", r.SetHours, admin...)

	// reservations
	h := d.Reservations
	v1.POST("/reservations", h.Create, member...)
	v1.GET("/my-reservations", h.ListMine, member...)
	v1.GET("/reservations/upcoming", h.Upcoming, admin...)
	v1.GET("/reservations/:id", h.Get, member...)
	v1.PUT("/reservations/:id", h.Update, member...)
	v1.PUT("/reservations/:id/cancel", h.Cancel, member...)
	v1.DELETE("/reservations/:id", h.Cancel, member...)

	// staff
	v1.PUT("/reservations/:id/confirm", h.Confirm, admin...)
	v1.PUT("/reservations/:id/complete", h.Complete, admin...)
	v1.PUT("/reservations/:id/no-show", h.NoShow, admin...)
	v1.GET("/restaurants/:id/reservations", h.ListByRestaurant, admin...)
	v1.GET("/restaurants/:id/statistics", h.Statistics, admin...)
}

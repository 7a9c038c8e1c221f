// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/middleware"
)

// Handlers groups what Register mounts.
type Handlers struct {
	Health       echo.HandlerFunc
	Events       *handler.EventHandler
	Reservations *handler.ReservationHandler
}

// Register mounts /healthz and the authenticated /api/v1 surface. rdb may
// be nil, in which case rate limiting and caching are skipped.
func Register(e *echo.Echo, cfg config.Config, rdb *redis.Client, h Handlers) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api/v1", middleware.JWTAuth(cfg.JWTSecret))
	cache := middleware.NewRedisCache(cfg.Cache, rdb)

	ev := api.Group("/events")
	ev.POST("", h.Events.Create)
	ev.GET("", h.Events.List, cache)
	ev.GET("/nearby", h.Events.Nearby, cache)
	ev.GET("/:id", h.Events.Get)
	ev.GET("/:id/address", h.Events.Address)
	ev.PATCH("/:id", h.Events.Update)
	ev.DELETE("/:id", h.Events.Delete)

	rs := api.Group("/reservation", middleware.NewTokenBucket(cfg.RateLimit, rdb))
	rs.POST("", h.Reservations.Create)
	rs.GET("/my", h.Reservations.ListMine)
	rs.GET("/:id", h.Reservations.Get)
	rs.PATCH("/:id", h.Reservations.Update)
	rs.DELETE("/:id", h.Reservations.Delete)
}

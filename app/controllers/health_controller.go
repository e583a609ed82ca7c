package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

// PingFunc checks one backing service.
type PingFunc func(ctx context.Context) error

// HealthController reports the state of the database and the cache.
type HealthController struct {
	database PingFunc
	cache    PingFunc
	started  time.Time
	log      *zap.Logger
}

func NewHealthController(database, cache PingFunc, lg *zap.Logger) *HealthController {
	return &HealthController{database: database, cache: cache, started: time.Now(), log: lg}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Cache     string    `json:"cache"`
	Uptime    float64   `json:"uptime"`
}

// HandleHealth pings dependencies in parallel. A cache outage degrades the
// service; a database outage makes it unhealthy.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	var dbErr, cacheErr error
	var g errgroup.Group
	g.Go(func() error {
		dbErr = ping(ctx, hc.database)
		return nil
	})
	g.Go(func() error {
		cacheErr = ping(ctx, hc.cache)
		return nil
	})
	_ = g.Wait()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
		Cache:     "connected",
		Uptime:    time.Since(hc.started).Seconds(),
	}
	status := fiber.StatusOK
	if cacheErr != nil {
		hc.log.Warn("health check: cache unavailable", zap.Error(cacheErr))
		resp.Cache = "disconnected"
		resp.Status = "degraded"
	}
	if dbErr != nil {
		hc.log.Error("health check: database unavailable", zap.Error(dbErr))
		resp.Database = "disconnected"
		resp.Status = "unhealthy"
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

func ping(ctx context.Context, fn PingFunc) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

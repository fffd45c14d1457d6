package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/internal/persistence"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	postgres *persistence.Postgres
	redis    *persistence.Redis
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewHealthHandler(postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis, metrics: metrics, logger: logger}
}

// Live reports that the process is running.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready reports whether dependencies respond. Redis is optional, so only
// the database gates readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.postgres.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.String("dependency", "postgres"), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "database unreachable",
			},
		})
	}
	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("readiness check degraded", zap.String("dependency", "redis"), zap.Error(err))
			redisStatus = "degraded"
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "redis": redisStatus})
}

// Metrics dumps the in-process counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}

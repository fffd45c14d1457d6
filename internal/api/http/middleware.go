package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/config"
	"github.com/fincaops/incident-service/pkg/util"
)

// RegisterMiddlewares wires the shared middleware chain onto the app.
func RegisterMiddlewares(app *fiber.App, cfg *config.Config, logger *zap.Logger) {
	app.Use(requestTimeoutMiddleware(cfg.App.RequestTimeout()))
	app.Use(requestLoggingMiddleware(logger))
	app.Use(errorHandlingMiddleware(logger))
}

// requestTimeoutMiddleware bounds each request with a per-request context.
func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func requestLoggingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("http request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// errorHandlingMiddleware converts errors and panics into the JSON error envelope.
func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Path()),
				)
				err = writeDomainError(c, util.ToDomainError(util.NewInternalError(fmt.Errorf("panic: %v", r))))
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "REQUEST_FAILED",
					"message": fiberErr.Message,
				},
			})
		}

		dErr := util.ToDomainError(err)
		if dErr.HTTPStatus >= 500 {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("code", dErr.Code),
				zap.Error(err),
			)
		}
		return writeDomainError(c, dErr)
	}
}

func writeDomainError(c *fiber.Ctx, dErr *util.DomainError) error {
	body := fiber.Map{
		"code":    dErr.Code,
		"message": dErr.Message,
	}
	if len(dErr.Details) > 0 {
		body["details"] = dErr.Details
	}
	return c.Status(dErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

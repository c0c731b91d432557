package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/metrics"
	"github.com/i474232898/astro-viewing-conditions/internal/weather/providers"
)

const serviceName = "astro-viewing-conditions"

// AppOptions tunes NewApp.
type AppOptions struct {
	Metrics       *metrics.Collector
	RequestLogger bool
}

// NewApp builds the Fiber app with the centralized error handler, global
// middleware, health and metrics endpoints. API routes are added by RegisterRoutes.
func NewApp(opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	if opts.RequestLogger {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	if opts.Metrics != nil {
		app.Use(metricsMiddleware(opts.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	return app
}

func metricsMiddleware(m *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}
		m.RecordAPIRequest(c.Route().Path, c.Method(), status, time.Since(start))
		return err
	}
}

// toHTTPError maps domain errors onto HTTP status codes.
func toHTTPError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, conditions.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFoundMsg)
	case geo.IsValidationError(err),
		errors.Is(err, conditions.ErrDayOutOfRange),
		errors.Is(err, providers.ErrEmptyQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, conditions.ErrNoGeocoder):
		return fiber.NewError(fiber.StatusNotImplemented, err.Error())
	case errors.Is(err, conditions.ErrForecastUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "upstream timed out")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

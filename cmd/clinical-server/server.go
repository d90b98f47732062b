package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/quantumcare/clinical/internal/config"
	"github.com/quantumcare/clinical/internal/domain/assist"
	"github.com/quantumcare/clinical/internal/domain/records"
	"github.com/quantumcare/clinical/internal/platform/metrics"
	"github.com/quantumcare/clinical/internal/platform/middleware"
)

type serverDeps struct {
	cfg       *config.Config
	logger    zerolog.Logger
	records   *records.Service
	forwarder *assist.Forwarder
	metrics   *metrics.Metrics

	// dbHealth is nil for the memory store.
	dbHealth    echo.HandlerFunc
	cacheHealth func(context.Context) error
}

func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.logger)

	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.Metrics(d.metrics))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(d.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(d.cfg.RequestTimeout))

	e.GET("/health", healthHandler(d))
	if d.dbHealth != nil {
		e.GET("/health/db", d.dbHealth)
	} else {
		e.GET("/health/db", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": config.StoreMemory})
		})
	}
	if d.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	records.NewHandler(d.records).RegisterRoutes(apiV1)
	assist.NewHandler(d.forwarder).RegisterRoutes(apiV1)

	return e
}

// healthHandler reports liveness. A configured cache that does not answer
// is reported as degraded; the API still works without it.
func healthHandler(d serverDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]string{
			"status":  "ok",
			"version": version,
			"store":   d.cfg.StoreDriver,
		}
		if d.cacheHealth != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := d.cacheHealth(ctx); err != nil {
				d.logger.Warn().Err(err).Msg("linkage cache health check failed")
				body["cache"] = "unavailable"
				body["status"] = "degraded"
			} else {
				body["cache"] = "ok"
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

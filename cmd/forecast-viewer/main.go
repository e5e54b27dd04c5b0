package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/forecast-viewer/internal/api/http"
	"github.com/i474232898/forecast-viewer/internal/config"
	"github.com/i474232898/forecast-viewer/internal/metrics"
	"github.com/i474232898/forecast-viewer/internal/scheduler"
	"github.com/i474232898/forecast-viewer/internal/store"
	"github.com/i474232898/forecast-viewer/internal/viewer"
	"github.com/i474232898/forecast-viewer/internal/weather"
	"github.com/i474232898/forecast-viewer/internal/weather/providers"
)

func main() {
	// Load configuration (.env, environment, optional YAML file).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("forecast_viewer", reg)

	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client:    &http.Client{Timeout: cfg.HTTPTimeout},
		UserAgent: cfg.UserAgent,
		Metrics:   collector,
	}

	nws := providers.NewNWSProvider(httpCfg, cfg.NWSBaseURL)
	limited := providers.NewRateLimitedNWS(nws, nws, cfg.UpstreamRPS, cfg.UpstreamBurst)

	// Air quality is optional enrichment and needs an API key.
	var airQuality weather.AirQualitySource
	if cfg.OpenWeatherAPIKey != "" {
		aq := providers.NewOpenWeatherAirQualityProvider(httpCfg, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey)
		airQuality = providers.NewRateLimitedAirQuality(aq, cfg.UpstreamRPS, cfg.UpstreamBurst)
	} else {
		log.Printf("INFO: OPENWEATHER_API_KEY not set, forecasts are served without AQI")
	}

	service := weather.NewService(limited, limited, airQuality)

	initialQuery := ""
	if cfg.InitialLatLng != "" {
		initialQuery = store.ParamLatLng + "=" + cfg.InitialLatLng
	}
	urlStore, err := store.NewURLStore(initialQuery, cfg.HistoryMax, cfg.HistoryMaxAge)
	if err != nil {
		log.Fatalf("failed to create url store: %v", err)
	}

	v := viewer.New(viewer.Config{SettleWindow: cfg.SettleWindow}, viewer.Deps{
		Catalog:    providers.NewStateCapitalsCatalog(httpCfg, cfg.CatalogURL),
		Forecaster: service,
		Store:      urlStore,
		Metrics:    collector,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v.Start(ctx)
	defer v.Close()

	// Housekeeping: history retention and session stats.
	sched := scheduler.New(cfg.StatsInterval, v, urlStore)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "forecast-viewer",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "forecast-viewer",
			"session": v.Session(),
		})
	})

	httpapi.RegisterRoutes(app, v, urlStore)
	httpapi.RegisterMetrics(app, reg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the viewer first so open view streams end.
	v.Close()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

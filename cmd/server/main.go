package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"orgchart/internal/admin"
	"orgchart/internal/auth"
	"orgchart/internal/config"
	"orgchart/internal/engine"
	"orgchart/internal/instrument"
	"orgchart/internal/logging"
	"orgchart/internal/metadata"
	"orgchart/internal/metrics"
	"orgchart/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log)
	log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("config loaded")

	// 2. Schema
	reg := metadata.NewDefaultRegistry()
	if cfg.SchemaPath != "" {
		if err := metadata.LoadFile(cfg.SchemaPath, reg); err != nil {
			log.Fatal().Err(err).Str("path", cfg.SchemaPath).Msg("failed to load schema")
		}
	}
	if err := engine.CompileRules(reg); err != nil {
		log.Fatal().Err(err).Msg("failed to compile rules")
	}

	// 3. Connect and migrate
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := store.NewMigrator(db, reg.Naming()).MigrateAll(ctx, reg); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate tables")
	}

	// 4. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(instrument.Middleware(cfg.Instrumentation, instrument.NewLogInstrumenter(logger)))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Server.Metrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, API is unauthenticated")
	}
	var adminMW []fiber.Handler
	if cfg.Auth.JWTSecret != "" {
		adminMW = append(adminMW, auth.Middleware(cfg.Auth.JWTSecret), auth.RequireAdmin())
	}
	admin.RegisterAdminRoutes(app, admin.NewHandler(reg), adminMW...)
	engine.RegisterRoutes(app, engine.NewHandler(db, reg, m), auth.Middleware(cfg.Auth.JWTSecret))

	// 5. Serve until signalled
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		serverErrors <- app.Listen(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
	log.Info().Msg("shutdown complete")
}

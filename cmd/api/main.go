package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/breadcrumbs/internal/adapters/http"
	natsadapter "github.com/samirrijal/breadcrumbs/internal/adapters/nats"
	"github.com/samirrijal/breadcrumbs/internal/adapters/valkey"
	"github.com/samirrijal/breadcrumbs/internal/core/ports"
	"github.com/samirrijal/breadcrumbs/internal/core/trail"
	"github.com/samirrijal/breadcrumbs/internal/core/usecases"
	"github.com/samirrijal/breadcrumbs/internal/pkg/config"
	"github.com/samirrijal/breadcrumbs/internal/pkg/logging"
	"github.com/samirrijal/breadcrumbs/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("breadcrumbs-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	opts, err := cfg.TrailOptions()
	if err != nil {
		log.Fatalf("trail options: %v", err)
	}
	tr := trail.New(opts)

	// Cache
	var cache *valkey.Cache
	var cacheSvc ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache, cacheSvc = c, c
		}
	}

	// NATS
	var events ports.EventPublisher
	var sub *natsadapter.Subscriber
	deps := &http.Dependencies{Cache: cache}
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			deps.NATS = pub.Conn()
		}

		sub, err = natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
			sub = nil
		} else {
			defer sub.Close()
		}
	}

	deps.Trail = usecases.NewTrailService(tr, events, cacheSvc, cfg.Valkey.TTLSeconds)
	defer deps.Trail.Close()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Breadcrumbs API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	if sub != nil {
		g.Go(func() error {
			if err := sub.SubscribeSamples(gctx, cfg.Trail.SourceID, deps.Trail.HandleSample); err != nil {
				return fmt.Errorf("subscribe samples: %w", err)
			}
			slog.Info("consuming samples", "subject", natsadapter.SampleSubject(cfg.Trail.SourceID))
			return nil
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "session", tr.Snapshot().SessionID)
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		// Give in-flight requests up to 10s to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

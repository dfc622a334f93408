package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/mylocation/internal/adapters/http"
	natsadapter "github.com/samirrijal/mylocation/internal/adapters/nats"
	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/adapters/raster"
	"github.com/samirrijal/mylocation/internal/adapters/valkey"
	"github.com/samirrijal/mylocation/internal/adapters/viewport"
	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/core/usecases"
	"github.com/samirrijal/mylocation/internal/pkg/config"
	"github.com/samirrijal/mylocation/internal/pkg/logging"
	"github.com/samirrijal/mylocation/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("mylocation-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "mylocation:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS: fixes go out through JetStream, frames over core NATS
	var (
		fixPub   ports.FixPublisher
		framePub ports.FramePublisher
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		fixPub, framePub = pub, pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Use cases. Without a fix subscriber, fixes accepted here are still
	// published and also applied to local sessions directly.
	var sessionSvc *usecases.SessionService
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, natsadapter.DefaultConsumer+"-"+hostname())
	if err != nil {
		slog.Warn("fix subscriber unavailable; sessions only follow fixes posted here", "error", err)
		fixPub = usecases.ApplyLocally(fixPub, func(ctx context.Context, fix *domain.Fix) error {
			return sessionSvc.ApplyFix(ctx, fix)
		})
	} else {
		defer sub.Close()
	}

	fixSvc := usecases.NewFixService(postgres.NewFixRepo(db), cacheSvc, fixPub)
	sessionSvc = usecases.NewSessionService(
		viewport.Factory(viewport.WithLogger(logging.Component("viewport"))),
		fixSvc,
		framePub,
		raster.Renderer{},
		sessionDefaults(cfg.Overlay),
	)

	// Fixes published by any instance or the feeder move local sessions
	if sub != nil {
		go func() {
			if err := sessionSvc.RunFixApplier(ctx, sub); err != nil && ctx.Err() == nil {
				slog.Error("fix applier stopped", "error", err)
			}
		}()
	}

	deps := &http.Dependencies{
		Fixes:    fixSvc,
		Sessions: sessionSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024, // fixes and session requests are small
		AppName:      "MyLocation API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Detach every overlay before the broker connections close
	sessionSvc.CloseAll(shutdownCtx)
	cancel()

	slog.Info("server stopped")
}

// sessionDefaults turns the overlay config section into session defaults.
// New sessions are centered on the device's latest fix, so the default
// center only applies to devices that never reported one.
func sessionDefaults(c config.OverlayConfig) usecases.SessionDefaults {
	opts := overlay.DefaultOptions()
	opts.Pane = domain.Pane(c.Pane)
	opts.AccuracyClassName = c.ClassName
	opts.ShowMarker = c.ShowMarker
	opts.ShowAccuracy = c.ShowAccuracy

	return usecases.SessionDefaults{
		Viewport: domain.Viewport{
			Zoom:   c.DefaultZoom,
			Width:  c.DefaultWidth,
			Height: c.DefaultHeight,
		},
		Overlay:     opts,
		MaxSessions: c.MaxSessions,
	}
}

// hostname names this instance's durable consumer so every API replica
// receives every fix.
func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace(h)
}

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errTooMany(c, "too many requests, please try again later")
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Deprecated aliases
	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Post("/devices/:id/fixes", timeout.NewWithContext(PostFixHandler(deps), 15*time.Second))
	v1.Get("/devices/:id/fixes", timeout.NewWithContext(ListFixesHandler(deps), 15*time.Second))
	v1.Get("/devices/:id/fixes/latest", timeout.NewWithContext(LatestFixHandler(deps), 15*time.Second))
	v1.Get("/devices/:id/location", timeout.NewWithContext(LatestFixHandler(deps), 15*time.Second))

	// Overlay sessions
	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), 15*time.Second))
	v1.Get("/sessions", timeout.NewWithContext(ListSessionsHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id", timeout.NewWithContext(GetSessionHandler(deps), 15*time.Second))
	v1.Delete("/sessions/:id", timeout.NewWithContext(DeleteSessionHandler(deps), 15*time.Second))
	v1.Put("/sessions/:id/viewport", timeout.NewWithContext(SetViewportHandler(deps), 15*time.Second))
	v1.Put("/sessions/:id/accuracy", timeout.NewWithContext(SetAccuracyHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/show", timeout.NewWithContext(ShowHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/hide", timeout.NewWithContext(HideHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/toggle", timeout.NewWithContext(ToggleHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id/frame", timeout.NewWithContext(FrameHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id/snapshot.png", timeout.NewWithContext(SnapshotHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	specPath := deps.SpecPath
	if specPath == "" {
		specPath = DefaultSpecPath
	}
	SetupDocs(app, specPath)

	// WebSocket
	app.Use("/ws", WebSocketUpgrade(deps))
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

package server

import (
	"context"
	"fmt"

	"commerce-backend/internal/core/config"
	"commerce-backend/internal/core/logger"
	"commerce-backend/internal/core/response"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"

	_ "commerce-backend/docs/swagger"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server holds the Fiber application and configuration.
type Server struct {
	// App is the main Fiber application instance.
	App *fiber.App
	// cfg holds the application configuration.
	cfg *config.AppConfig
	// checks are run by GET /healthz, keyed by dependency name.
	checks map[string]HealthCheck
}

// New creates a new Server instance with configured middleware.
func New(cfg *config.AppConfig) *Server {
	response.EnableDiagnostics(!cfg.IsProduction())

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "commerce-backend",
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Header: "X-Ray-ID",
	}))

	// Service logs emitted while handling a request carry its ray id.
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(logger.WithFields(c.UserContext(), zap.String("ray_id", response.RayID(c))))
		return c.Next()
	})

	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger.Get(),
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	s := &Server{
		App:    app,
		cfg:    cfg,
		checks: map[string]HealthCheck{},
	}
	app.Get("/healthz", s.health)

	return s
}

// AddHealthCheck registers a dependency check for GET /healthz.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// health handles GET /healthz.
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (s *Server) health(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{"status": "ok"}

	for name, check := range s.checks {
		if err := check(c.UserContext()); err != nil {
			logger.Get().Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			status = fiber.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = "down"
			continue
		}
		body[name] = "up"
	}

	return c.Status(status).JSON(body)
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.ServerPort)
	logger.Get().Info("Starting server", zap.String("address", addr))
	return s.App.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	return response.Error(c, err)
}

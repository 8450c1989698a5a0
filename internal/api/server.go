package api

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/insightdelivered/ideabank/internal/config"
	"github.com/insightdelivered/ideabank/internal/source"
)

// NewServer builds the fiber app with middleware, API routes and, when
// configured, the single-page frontend.
func NewServer(cfg *config.Config, logger *zap.Logger, version string) (*fiber.App, *Handler) {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "ideabank " + version,
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          ErrorHandler(logger.Named("api")),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(requestLogger(logger.Named("http")))

	h := NewHandler(logger, version)
	h.TopN = cfg.Report.TopN
	h.ExcludedStatuses = cfg.Report.ExcludedStatuses
	h.Fetch = source.HTTPOptions{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}
	h.AllowedHosts = cfg.Fetch.AllowedHosts
	h.RegisterRoutes(app)

	if cfg.Server.StaticDir != "" {
		serveFrontend(app, cfg.Server.StaticDir)
	}
	return app, h
}

// serveFrontend serves the built React app, falling back to index.html for
// client-side routes.
func serveFrontend(app *fiber.App, dir string) {
	app.Static("/", dir)
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return fiber.ErrNotFound
		}
		if _, err := os.Stat(filepath.Join(dir, c.Path())); err == nil {
			return c.Next()
		}
		return c.SendFile(filepath.Join(dir, "index.html"))
	})
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		)
		return err
	}
}

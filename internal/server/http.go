package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"memodams/backend/internal/audit"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server/middleware"
	"memodams/backend/internal/telemetry"
)

const instrumentationName = "memodams/backend/http"

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r fiber.Router)
}

// HTTPConfig carries what the middleware chain needs. Nil Audit, Events, Tracer and Meter
// fall back to no-op or global implementations.
type HTTPConfig struct {
	Access        *security.AccessVerifier
	Audit         audit.AuditLogger
	AuditSkip     map[string]bool
	Events        telemetry.Recorder
	Tracer        trace.Tracer
	Meter         metric.Meter
	SecureCookies bool
	Log           logging.Logger
}

// NewHTTP builds the fiber app: recover, client IP, device id, telemetry, bearer
// authentication and audit run on every request. health is mounted at the root and the
// API routes under /v1.
func NewHTTP(cfg HTTPConfig, health Registrar, routes ...Registrar) *fiber.App {
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	events := cfg.Events
	if events == nil {
		events = telemetry.Nop{}
	}
	auditLogger := cfg.Audit
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}

	app := fiber.New(fiber.Config{
		AppName:               "memodams-auth",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(middleware.RealIP())
	app.Use(middleware.DeviceCookie(cfg.SecureCookies))
	app.Use(middleware.Telemetry(events, tracer, meter, map[string]bool{"/healthz": true, "/readyz": true}))
	app.Use(middleware.Authenticate(cfg.Access))
	app.Use(middleware.Audit(auditLogger, cfg.AuditSkip))

	if health != nil {
		health.Register(app)
	}
	v1 := app.Group("/v1")
	for _, r := range routes {
		r.Register(v1)
	}
	return app
}

// errorHandler renders errors that escape the handlers in the ErrorBody shape.
func errorHandler(log logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return middleware.WriteError(c, fe.Code, fe.Message, "", "")
		}
		log.Error(c.UserContext(), "http: unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
		return middleware.Internal(c)
	}
}

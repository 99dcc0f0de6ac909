package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"memodams/backend/internal/security"
	"memodams/backend/internal/telemetry"
	"memodams/backend/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry wraps each request in a server span, records its duration, and emits an
// http_request event. Best-effort: nothing here can fail the request. skipRoutes are not
// traced (e.g. /healthz).
func Telemetry(rec telemetry.Recorder, tracer trace.Tracer, meter metric.Meter, skipRoutes map[string]bool) fiber.Handler {
	duration, _ := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"), metric.WithDescription("Duration of HTTP requests."))
	return func(c *fiber.Ctx) error {
		if skipRoutes[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path(), trace.WithSpanKind(trace.SpanKindServer))
		c.SetUserContext(ctx)
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
			span.RecordError(err)
		}
		route := c.Route().Path
		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", c.Method()),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		}
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attrs...)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		span.End()
		elapsed := time.Since(start)
		if duration != nil {
			duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
		}

		if rec != nil {
			// Inner middleware may have replaced the context (claims, device id).
			reqCtx := c.UserContext()
			ev := domain.NewEvent(domain.EventHTTPRequest, "http_middleware", httpRequestMetadata{
				Method:     c.Method(),
				Route:      route,
				StatusCode: status,
				DurationMs: elapsed.Milliseconds(),
				ClientIP:   ClientIP(reqCtx),
			})
			ev.AccountID, _ = AccountID(reqCtx)
			ev.SessionID, _ = SessionID(reqCtx)
			ev.DeviceID = security.DeviceDigest(DeviceID(reqCtx))
			rec.Record(reqCtx, ev)
		}
		return err
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mamadbah2/wacloud/internal/server/handlers"
)

// Paths served by the bot.
const (
	WebhookPath     = "/webhook"
	FlowPath        = "/flow"
	SendMessagePath = "/send-message"
	HealthPath      = "/healthz"
)

const tracerName = "github.com/mamadbah2/wacloud/internal/server/router"

// Option configures the engine built by New.
type Option func(*settings)

type settings struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider sets the provider request spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) {
		if tp != nil {
			s.tracerProvider = tp
		}
	}
}

// New builds the bot's HTTP surface: Meta's webhook verification and deliveries, the
// operator send-message endpoint, health, and the Flows data exchange endpoint when flow
// is set. Every request gets a server span, so dispatch spans nest under the delivery.
func New(handler *handlers.WebhookHandler, flow *handlers.FlowHandler, logger *zap.Logger, opts ...Option) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := settings{tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestSpan(s.tracerProvider.Tracer(tracerName)))
	r.Use(accessLog(logger))

	webhook := r.Group(WebhookPath)
	webhook.GET("", handler.Verify)
	webhook.POST("", handler.Receive)

	r.POST(SendMessagePath, handler.SendMessage)
	if flow != nil {
		r.POST(FlowPath, flow.Exchange)
	}
	r.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "flow_endpoint": flow != nil})
	})

	logger.Info("routes mounted",
		zap.String("webhook", WebhookPath),
		zap.Bool("flow_endpoint", flow != nil))
	return r
}

func requestSpan(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// accessLog logs one line per request. Health probes go to debug, rejected webhook
// deliveries to warn.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case c.FullPath() == HealthPath:
			level = zapcore.DebugLevel
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		if ce := logger.Check(level, "http request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.ClientIP()),
			)
		}
	}
}

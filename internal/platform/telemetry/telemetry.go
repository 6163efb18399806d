package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/helixmap/biograph-backend/internal/platform/envutil"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
)

var (
	once     sync.Once
	shutdown func(context.Context) error
)

// Init installs the global tracer provider. Disabled unless OTEL_ENABLED is
// set; the returned shutdown func is nil in that case.
func Init(ctx context.Context, log *logger.Logger, serviceName string) func(context.Context) error {
	once.Do(func() {
		if !envutil.Bool("OTEL_ENABLED", false) {
			return
		}

		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", envutil.Str("DEPLOY_ENV", "development")),
		))
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			if log != nil {
				log.Warn("otel exporter init failed, tracing disabled", "error", err)
			}
			return
		}

		ratio := envutil.Float("OTEL_SAMPLER_RATIO", 1.0)
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized", "service", serviceName)
		}
	})
	return shutdown
}

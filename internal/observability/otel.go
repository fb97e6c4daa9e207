package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
)

// Режимы экспорта трасс
const (
	modeOff    = "off"
	modeStdout = "stdout"
	modeOTLP   = "otlp"
)

// InitTracing ставит глобальный TracerProvider. Без OTEL_ENABLED и без
// endpoint трассировка остаётся no-op. Возвращает функцию остановки.
func InitTracing(ctx context.Context, cfg *config.Config, log *zap.Logger) (func(context.Context) error, error) {
	mode := exportMode(cfg.OtelConfig)
	if mode == modeOff {
		return func(context.Context) error { return nil }, nil
	}

	serviceName := strings.TrimSpace(cfg.OtelConfig.ServiceName)
	if serviceName == "" {
		serviceName = "scentswap-api"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		log.Warn("Ошибка инициализации otel resource, продолжаем", zap.Error(err))
	}

	exporter, err := buildExporter(ctx, mode, cfg.OtelConfig.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("✅ Трассировка включена", zap.String("mode", mode), zap.String("service", serviceName))
	return tp.Shutdown, nil
}

func exportMode(cfg config.OtelConfig) string {
	switch strings.TrimSpace(cfg.Enabled) {
	case "stdout":
		return modeStdout
	case "1", "true", "yes", "on":
		if cfg.OTLPEndpoint == "" {
			return modeStdout
		}
		return modeOTLP
	case "":
		if cfg.OTLPEndpoint != "" {
			return modeOTLP
		}
	}
	return modeOff
}

func buildExporter(ctx context.Context, mode, endpoint string) (sdktrace.SpanExporter, error) {
	if mode == modeStdout {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if strings.HasPrefix(endpoint, "localhost") || strings.HasPrefix(endpoint, "127.0.0.1") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// Package telemetry provides OpenTelemetry metrics initialization and the
// instruments recorded by the food data service.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds configuration for telemetry setup.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool
}

// Provider holds the initialized meter provider.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter
}

// Shutdown gracefully shuts down the telemetry provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.MeterProvider != nil {
		return p.MeterProvider.Shutdown(ctx)
	}
	return nil
}

// Init initializes OpenTelemetry metrics with the given configuration.
// Returns a Provider that must be shut down when the application exits.
// When disabled, the returned provider carries a no-op meter.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{Meter: otel.Meter(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second),
		)),
	)
	otel.SetMeterProvider(meterProvider)

	return &Provider{
		MeterProvider: meterProvider,
		Meter:         meterProvider.Meter(cfg.ServiceName),
	}, nil
}

// Metrics holds the food data service instruments.
type Metrics struct {
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	upstreamRequests metric.Int64Counter
	breakerChanges   metric.Int64Counter
}

// NewMetrics creates the food data instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	cacheHits, err := meter.Int64Counter("fooddata.cache.hits",
		metric.WithDescription("Cache hits per namespace"))
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("fooddata.cache.misses",
		metric.WithDescription("Cache misses per namespace"))
	if err != nil {
		return nil, err
	}
	upstreamRequests, err := meter.Int64Counter("fooddata.upstream.requests",
		metric.WithDescription("Upstream provider calls by outcome"))
	if err != nil {
		return nil, err
	}
	breakerChanges, err := meter.Int64Counter("fooddata.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		upstreamRequests: upstreamRequests,
		breakerChanges:   breakerChanges,
	}, nil
}

// RecordCacheLookup records a cache hit or miss for a namespace.
func (m *Metrics) RecordCacheLookup(ctx context.Context, namespace string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("namespace", namespace))
	if hit {
		m.cacheHits.Add(ctx, 1, attrs)
	} else {
		m.cacheMisses.Add(ctx, 1, attrs)
	}
}

// RecordUpstreamRequest records one upstream call and its outcome.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil {
		return
	}
	m.breakerChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package metric provides the OpenTelemetry instruments recorded during a run.
// Instruments are no-ops until InitMeterProvider or Start is called.
package metric

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Meter and instrument names.
const (
	MeterName = "trpc.group/trpc-go/trpc-memory-eval"

	MetricQueries       = "memeval.queries"
	MetricQueryDuration = "memeval.query.duration"
	MetricTokens        = "memeval.tokens"
	MetricBatches       = "memeval.ingest.batches"

	defaultEndpoint     = "localhost:4318"
	defaultGRPCEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// Export protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Attribute keys.
const (
	KeyCategory  = attribute.Key("category")
	KeyOutcome   = attribute.Key("outcome")
	KeyTokenType = attribute.Key("token.type")
	KeyStatus    = attribute.Key("status")
)

// queryDurationBuckets are in seconds; one query is a few LLM round trips.
var queryDurationBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64}

var (
	// QueryCount counts finished queries by category and outcome.
	QueryCount metric.Int64Counter
	// QueryDuration records the wall time of one query.
	QueryDuration metric.Float64Histogram
	// TokenUsage counts prompt and completion tokens.
	TokenUsage metric.Int64Counter
	// BatchCount counts ingested memory batches by status.
	BatchCount metric.Int64Counter
)

func init() {
	if err := InitMeterProvider(noop.NewMeterProvider()); err != nil {
		panic(err)
	}
}

// InitMeterProvider creates the instruments from mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	meter := mp.Meter(MeterName)
	var err error
	if QueryCount, err = meter.Int64Counter(
		MetricQueries,
		metric.WithDescription("Number of evaluated queries"),
		metric.WithUnit("{query}"),
	); err != nil {
		return fmt.Errorf("create metric %s: %w", MetricQueries, err)
	}
	if QueryDuration, err = meter.Float64Histogram(
		MetricQueryDuration,
		metric.WithDescription("Duration of one query evaluation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryDurationBuckets...),
	); err != nil {
		return fmt.Errorf("create metric %s: %w", MetricQueryDuration, err)
	}
	if TokenUsage, err = meter.Int64Counter(
		MetricTokens,
		metric.WithDescription("Tokens used by the inference backend"),
		metric.WithUnit("{token}"),
	); err != nil {
		return fmt.Errorf("create metric %s: %w", MetricTokens, err)
	}
	if BatchCount, err = meter.Int64Counter(
		MetricBatches,
		metric.WithDescription("Number of memory batches sent to the store"),
		metric.WithUnit("{batch}"),
	); err != nil {
		return fmt.Errorf("create metric %s: %w", MetricBatches, err)
	}
	return nil
}

// RecordQuery records one finished query.
func RecordQuery(ctx context.Context, category, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(KeyCategory.String(category), KeyOutcome.String(outcome))
	QueryCount.Add(ctx, 1, attrs)
	QueryDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTokens records the token usage of one backend response.
func RecordTokens(ctx context.Context, prompt, completion int) {
	if prompt > 0 {
		TokenUsage.Add(ctx, int64(prompt), metric.WithAttributes(KeyTokenType.String("prompt")))
	}
	if completion > 0 {
		TokenUsage.Add(ctx, int64(completion), metric.WithAttributes(KeyTokenType.String("completion")))
	}
}

// RecordBatch records one ingest attempt.
func RecordBatch(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BatchCount.Add(ctx, 1, metric.WithAttributes(KeyStatus.String(status)))
}

// Start installs an OTLP/HTTP meter provider and returns its cleanup.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	mp, err := NewMeterProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitMeterProvider(mp); err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return mp.Shutdown(ctx)
	}, nil
}

// NewMeterProvider creates a meter provider exporting over OTLP/HTTP.
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		serviceName:    "trpc-memory-eval",
		serviceVersion: "v0.1.0",
	}
	for _, opt := range opts {
		opt(o)
	}
	exporter, err := newExporter(ctx, o)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

func newExporter(ctx context.Context, o *options) (sdkmetric.Exporter, error) {
	if o.endpoint == "" && o.endpointURL == "" {
		o.endpoint = metricsEndpoint(o.protocol)
	}
	if o.endpointURL != "" {
		if u, err := url.Parse(o.endpointURL); err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid metrics endpoint url %q", o.endpointURL)
		}
	}
	switch o.protocol {
	case "", ProtocolHTTP:
		opts := []otlpmetrichttp.Option{}
		if o.endpointURL != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(o.endpointURL))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(o.endpoint), otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics exporter: %w", err)
		}
		return exporter, nil
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{}
		if o.endpointURL != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(o.endpointURL))
		} else {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(o.endpoint), otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC metrics exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported metrics protocol %q", o.protocol)
	}
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == ProtocolGRPC {
		return defaultGRPCEndpoint
	}
	return defaultEndpoint
}

// Option configures NewMeterProvider.
type Option func(*options)

type options struct {
	protocol       string
	endpoint       string
	endpointURL    string
	serviceName    string
	serviceVersion string
}

// WithProtocol selects ProtocolHTTP (default) or ProtocolGRPC.
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithEndpoint sets the collector host and port, e.g. "collector:4318".
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithEndpointURL sets a full collector URL and takes precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) { o.endpointURL = endpointURL }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

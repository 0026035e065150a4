//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package trace provides the tracer used for per-query spans.
// Spans are dropped until Start installs an exporting provider.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// InstrumentName names the tracer.
	InstrumentName = "trpc.group/trpc-go/trpc-memory-eval"
	// ServiceName is the default service.name resource attribute.
	ServiceName = "trpc-memory-eval"
	// ServiceVersion is the default service.version resource attribute.
	ServiceVersion = "v0.1.0"

	defaultEndpoint     = "localhost:4318"
	defaultGRPCEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// Export protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Span attribute keys.
const (
	KeyQueryIndex = attribute.Key("memeval.query.index")
	KeyCategory   = attribute.Key("memeval.query.category")
	KeyOutcome    = attribute.Key("memeval.query.outcome")
	KeyStage      = attribute.Key("memeval.query.stage")
	KeyMemories   = attribute.Key("memeval.memories.count")
	KeyRunID      = attribute.Key("memeval.run.id")
)

// Tracer is the package tracer. It is a no-op until Start is called.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(InstrumentName)

// Start installs an OTLP/HTTP tracer provider and returns its cleanup.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		serviceName:    ServiceName,
		serviceVersion: ServiceVersion,
	}
	for _, opt := range opts {
		opt(o)
	}
	exporter, err := newExporter(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
		resource.WithAttributes(o.resourceAttributes...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	Tracer = tp.Tracer(InstrumentName)

	return func() error {
		Tracer = noop.NewTracerProvider().Tracer(InstrumentName)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func newExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	if o.endpoint == "" && o.endpointURL == "" {
		o.endpoint = tracesEndpoint(o.protocol)
	}
	if o.endpointURL != "" {
		if u, err := url.Parse(o.endpointURL); err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid traces endpoint url %q", o.endpointURL)
		}
	}
	switch o.protocol {
	case "", ProtocolHTTP:
		opts := []otlptracehttp.Option{}
		if o.endpointURL != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(o.endpointURL))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(o.endpoint), otlptracehttp.WithInsecure())
		}
		if len(o.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(o.headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{}
		if o.endpointURL != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(o.endpointURL))
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(o.endpoint), otlptracegrpc.WithInsecure())
		}
		if len(o.headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(o.headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", o.protocol)
	}
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
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

// Option configures Start.
type Option func(*options)

type options struct {
	protocol           string
	endpoint           string
	endpointURL        string
	headers            map[string]string
	serviceName        string
	serviceVersion     string
	resourceAttributes []attribute.KeyValue
}

// WithProtocol selects ProtocolHTTP (default) or ProtocolGRPC.
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithEndpoint sets the collector host and port, e.g. "collector:4318".
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT are used
// when neither WithEndpoint nor WithEndpointURL is given.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithEndpointURL sets a full collector URL and takes precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) { o.endpointURL = endpointURL }
}

// WithHeaders sets headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(o *options) { o.serviceVersion = version }
}

// WithResourceAttributes appends custom resource attributes.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.resourceAttributes = append(o.resourceAttributes, attrs...) }
}

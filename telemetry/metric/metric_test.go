//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	require.NoError(t, InitMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	t.Cleanup(func() { _ = InitMeterProvider(noop.NewMeterProvider()) })

	ctx := context.Background()
	RecordQuery(ctx, "temporal", "correct", 1500*time.Millisecond)
	RecordQuery(ctx, "temporal", "correct", 500*time.Millisecond)
	RecordQuery(ctx, "multi-hop", "failed", time.Second)
	RecordTokens(ctx, 120, 30)
	RecordTokens(ctx, 0, 0)
	RecordBatch(ctx, nil)
	RecordBatch(ctx, errors.New("boom"))

	got := collect(t, reader)

	queries, ok := got[MetricQueries].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range queries.DataPoints {
		cat, _ := dp.Attributes.Value(KeyCategory)
		out, _ := dp.Attributes.Value(KeyOutcome)
		counts[cat.AsString()+"/"+out.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"temporal/correct": 2, "multi-hop/failed": 1}, counts)

	durations, ok := got[MetricQueryDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range durations.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(3), total)

	tokens, ok := got[MetricTokens].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byType := make(map[string]int64)
	for _, dp := range tokens.DataPoints {
		v, _ := dp.Attributes.Value(KeyTokenType)
		byType[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"prompt": 120, "completion": 30}, byType)

	batches, ok := got[MetricBatches].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, batches.DataPoints, 2)
	for _, dp := range batches.DataPoints {
		assert.Equal(t, int64(1), dp.Value)
		assert.True(t, dp.Attributes.HasValue(KeyStatus))
	}
}

func TestNoopByDefault(t *testing.T) {
	// Recording before any provider is installed must be safe.
	RecordQuery(context.Background(), "open-domain", "wrong", time.Second)
	RecordTokens(context.Background(), 1, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "metrics:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4318")
	assert.Equal(t, "metrics:4318", metricsEndpoint(ProtocolHTTP))

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	assert.Equal(t, "generic:4318", metricsEndpoint(ProtocolHTTP))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, defaultEndpoint, metricsEndpoint(ProtocolHTTP))
	assert.Equal(t, defaultGRPCEndpoint, metricsEndpoint(ProtocolGRPC))
}

func TestNewMeterProvider(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), WithEndpoint("localhost:4318"), WithServiceName("memeval-test"))
	require.NoError(t, err)
	require.NotNil(t, mp)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = mp.Shutdown(ctx)

	_, err = NewMeterProvider(context.Background(), WithEndpointURL("http:///bad"))
	assert.Error(t, err)

	mp, err = NewMeterProvider(context.Background(), WithProtocol(ProtocolGRPC), WithEndpoint("localhost:4317"))
	require.NoError(t, err)
	_ = mp.Shutdown(ctx)

	_, err = NewMeterProvider(context.Background(), WithProtocol("udp"))
	assert.ErrorContains(t, err, "unsupported metrics protocol")
}

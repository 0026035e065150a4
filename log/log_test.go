//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package log_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-memory-eval/log"
)

type recorder struct {
	lines []string
}

func (r *recorder) add(level, format string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recorder) Debugf(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recorder) Infof(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recorder) Warnf(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recorder) Errorf(format string, args ...any) { r.add("ERROR", format, args...) }
func (r *recorder) Fatalf(format string, args ...any) { r.add("FATAL", format, args...) }

func swap(t *testing.T) (*recorder, *recorder) {
	t.Helper()
	origDefault, origCtx := log.Default, log.ContextDefault
	t.Cleanup(func() {
		log.Default = origDefault
		log.ContextDefault = origCtx
	})
	d, c := &recorder{}, &recorder{}
	log.Default, log.ContextDefault = d, c
	return d, c
}

func TestHelpersUseDefault(t *testing.T) {
	d, c := swap(t)
	log.Debugf("batch %d", 1)
	log.Infof("batch %d", 2)
	log.Warnf("batch %d", 3)
	log.Errorf("batch %d", 4)
	log.Fatalf("batch %d", 5)
	assert.Equal(t, []string{"DEBUG batch 1", "INFO batch 2", "WARN batch 3", "ERROR batch 4", "FATAL batch 5"}, d.lines)
	assert.Empty(t, c.lines)
}

func TestContextHelpersAddTraceID(t *testing.T) {
	d, c := swap(t)
	log.InfofContext(context.Background(), "query %d", 1)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.WarnfContext(ctx, "query %d failed", 2)
	log.DebugfContext(ctx, "x")
	log.ErrorfContext(ctx, "y")

	assert.Empty(t, d.lines)
	require.Len(t, c.lines, 4)
	assert.Equal(t, "INFO query 1", c.lines[0])
	assert.Equal(t, "WARN [trace_id="+sc.TraceID().String()+"] query 2 failed", c.lines[1])
}

func TestSetOutputFileWritesJSON(t *testing.T) {
	origDefault, origCtx := log.Default, log.ContextDefault
	t.Cleanup(func() {
		log.Default = origDefault
		log.ContextDefault = origCtx
	})

	path := filepath.Join(t.TempDir(), "eval.log")
	closer := log.SetOutputFile(log.FileOptions{Path: path, MaxSizeMB: 1})
	log.Infof("unit %d graded", 7)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"unit 7 graded"`)
	assert.Contains(t, string(data), `"lvl":"INFO"`)
}

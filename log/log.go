//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package log is the zap-backed logger of trpc-memory-eval.
//
// Default writes colored console lines to stdout. SetOutputFile additionally
// tees JSON lines into a rotating file. The *Context helpers prefix the line
// with the trace id of the span in ctx, so log lines of one query can be
// matched with its exported span.
package log

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels accepted by SetLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Logger is implemented by *zap.SugaredLogger. Replace Default or
// ContextDefault with another implementation to redirect output.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Default serves the package-level helpers.
var Default Logger = newConsole(1)

// ContextDefault serves the *Context helpers, which add one stack frame.
var ContextDefault Logger = newConsole(2)

func newConsole(callerSkip int) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoding), zapcore.AddSync(os.Stdout), zapLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip)).Sugar()
}

// SetLevel changes the level of every logger built by this package.
// Unknown levels fall back to info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	case LevelFatal:
		zapLevel.SetLevel(zapcore.FatalLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// FileOptions configures rotating file output.
type FileOptions struct {
	Path string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// SetOutputFile tees Default and ContextDefault into a rotating JSON file in
// addition to stdout. Closing the returned closer closes the file.
func SetOutputFile(opts FileOptions) io.Closer {
	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	build := func(callerSkip int) *zap.SugaredLogger {
		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoding), zapcore.AddSync(os.Stdout), zapLevel),
			zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoding), zapcore.AddSync(file), zapLevel),
		)
		return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip)).Sugar()
	}
	Default = build(1)
	ContextDefault = build(2)
	return file
}

var consoleEncoding = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// fileEncoding is consoleEncoding without color codes.
var fileEncoding = func() zapcore.EncoderConfig {
	cfg := consoleEncoding
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}()

// Debugf logs at debug level.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatalf logs at fatal level and exits.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }

// DebugfContext logs at debug level, tagged with the trace id of ctx.
var DebugfContext = func(ctx context.Context, format string, args ...any) {
	ContextDefault.Debugf(withTrace(ctx, format), args...)
}

// InfofContext logs at info level, tagged with the trace id of ctx.
var InfofContext = func(ctx context.Context, format string, args ...any) {
	ContextDefault.Infof(withTrace(ctx, format), args...)
}

// WarnfContext logs at warn level, tagged with the trace id of ctx.
var WarnfContext = func(ctx context.Context, format string, args ...any) {
	ContextDefault.Warnf(withTrace(ctx, format), args...)
}

// ErrorfContext logs at error level, tagged with the trace id of ctx.
var ErrorfContext = func(ctx context.Context, format string, args ...any) {
	ContextDefault.Errorf(withTrace(ctx, format), args...)
}

func withTrace(ctx context.Context, format string) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return format
	}
	return "[trace_id=" + sc.TraceID().String() + "] " + format
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/openai/openai-go"

	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult/local"
	evalmysql "trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult/mysql"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore/viking"
	"trpc.group/trpc-go/trpc-memory-eval/model"
	openaimodel "trpc.group/trpc-go/trpc-memory-eval/model/openai"
	"trpc.group/trpc-go/trpc-memory-eval/storage/cos"
	"trpc.group/trpc-go/trpc-memory-eval/storage/tos"
	"trpc.group/trpc-go/trpc-memory-eval/telemetry/metric"
	"trpc.group/trpc-go/trpc-memory-eval/telemetry/trace"
)

// NewStore creates the memory store client.
func NewStore(cfg *config.Config) (*viking.Client, error) {
	return viking.New(cfg.Memory)
}

// NewModels creates the answer and grading models. Both report token usage
// to tracker when it is not nil.
func NewModels(cfg *config.Config, tracker *evaluation.TokenTracker) (answerModel, judgeModel model.Model) {
	m := cfg.Model
	opts := []openaimodel.Option{openaimodel.WithAPIKey(m.APIKey), openaimodel.WithTimeout(m.Timeout)}
	if m.MaxRetries != nil {
		opts = append(opts, openaimodel.WithMaxRetries(*m.MaxRetries))
	}
	if m.LegacyMaxTokens != nil {
		opts = append(opts, openaimodel.WithLegacyMaxTokens(*m.LegacyMaxTokens))
	}
	if m.AzureEndpoint != "" {
		opts = append(opts, openaimodel.WithAzure(m.AzureEndpoint, m.AzureAPIVersion))
	} else if m.BaseURL != "" {
		opts = append(opts, openaimodel.WithBaseURL(m.BaseURL))
	}
	if tracker != nil {
		opts = append(opts, openaimodel.WithChatResponseCallback(usageCallback(tracker)))
	}
	answerModel = openaimodel.New(m.Name, opts...)
	if m.GraderName() == m.Name {
		return answerModel, answerModel
	}
	return answerModel, openaimodel.New(m.GraderName(), opts...)
}

func usageCallback(tracker *evaluation.TokenTracker) openaimodel.ChatResponseCallbackFunc {
	return func(ctx context.Context, _ *openai.ChatCompletionNewParams, rsp *openai.ChatCompletion) {
		if rsp == nil {
			return
		}
		tracker.Add(ctx, int(rsp.Usage.PromptTokens), int(rsp.Usage.CompletionTokens))
	}
}

// NewSinks creates an uploader for every configured report destination.
func NewSinks(cfg *config.Config) ([]Sink, error) {
	var sinks []Sink
	if c := cfg.Report.COS; c.BucketURL != "" {
		opts := []cos.Option{cos.WithPathPrefix(c.Prefix), cos.WithTimeout(c.Timeout)}
		if c.SecretID != "" {
			opts = append(opts, cos.WithSecretID(c.SecretID), cos.WithSecretKey(c.SecretKey))
		}
		u, err := cos.NewUploader(c.BucketURL, opts...)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, Sink{Name: "cos", Uploader: u})
	}
	if c := cfg.Report.TOS; c.Bucket != "" {
		u, err := tos.New(c.Config, c.Prefix)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, Sink{Name: "tos", Uploader: u})
	}
	return sinks, nil
}

// NewHistory creates the run history manager, or nil when disabled.
func NewHistory(cfg *config.Config) (evalresult.Manager, error) {
	h := cfg.History
	switch h.Backend {
	case "", config.HistoryNone:
		return nil, nil
	case config.HistoryLocal:
		return local.NewManager(evalresult.WithBaseDir(h.Dir)), nil
	case config.HistoryMySQL:
		return evalmysql.New(
			evalmysql.WithMySQLClientDSN(h.DSN),
			evalmysql.WithTablePrefix(h.TablePrefix),
		)
	default:
		return nil, errors.New("unknown history backend " + h.Backend)
	}
}

// StartTelemetry starts the exporters whose endpoints are configured. The
// returned function flushes and stops them.
func StartTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	t := cfg.Telemetry
	var cleans []func() error
	stop := func() {
		for _, clean := range cleans {
			if err := clean(); err != nil {
				log.Warnf("telemetry shutdown: %v", err)
			}
		}
	}
	if t.TracesEndpoint != "" {
		opt := trace.WithEndpoint(t.TracesEndpoint)
		if strings.Contains(t.TracesEndpoint, "://") {
			opt = trace.WithEndpointURL(t.TracesEndpoint)
		}
		clean, err := trace.Start(ctx, opt, trace.WithProtocol(t.Protocol), trace.WithServiceName(t.ServiceName))
		if err != nil {
			return nil, err
		}
		cleans = append(cleans, clean)
	}
	if t.MetricsEndpoint != "" {
		opt := metric.WithEndpoint(t.MetricsEndpoint)
		if strings.Contains(t.MetricsEndpoint, "://") {
			opt = metric.WithEndpointURL(t.MetricsEndpoint)
		}
		clean, err := metric.Start(ctx, opt, metric.WithProtocol(t.Protocol), metric.WithServiceName(t.ServiceName))
		if err != nil {
			stop()
			return nil, err
		}
		cleans = append(cleans, clean)
	}
	return stop, nil
}

// SetupLog applies the log section. The returned closer is nil when no
// log file is configured.
func SetupLog(cfg *config.Config) io.Closer {
	log.SetLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		return nil
	}
	return log.SetOutputFile(log.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
}

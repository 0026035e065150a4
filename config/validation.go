//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
)

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Stage names accepted by Validate.
const (
	StagePrepare  = "prepare"
	StageIngest   = "ingest"
	StageEvaluate = "evaluate"
)

// Validate checks the fields the given stages need. No stage means all.
func (c *Config) Validate(stages ...string) error {
	if len(stages) == 0 {
		stages = []string{StagePrepare, StageIngest, StageEvaluate}
	}
	var errs ValidationErrors
	for _, s := range stages {
		switch s {
		case StagePrepare:
			errs = append(errs, c.validateDataset()...)
		case StageIngest:
			errs = append(errs, c.validateMemory()...)
			if c.Ingest.Concurrency <= 0 {
				errs = append(errs, ValidationError{
					Field:   "ingest.concurrency",
					Message: fmt.Sprintf("must be positive, got %d", c.Ingest.Concurrency),
				})
			}
		case StageEvaluate:
			errs = append(errs, c.validateMemory()...)
			errs = append(errs, c.validateModel()...)
			errs = append(errs, c.validateEvaluation()...)
			errs = append(errs, c.validateReport()...)
		default:
			errs = append(errs, ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", s)})
		}
	}
	errs = append(errs, c.validateHistory()...)
	if p := c.Telemetry.Protocol; p != "" && p != "http" && p != "grpc" {
		errs = append(errs, ValidationError{
			Field:   "telemetry.protocol",
			Message: fmt.Sprintf("must be http or grpc, got %q", p),
		})
	}
	errs = dedupe(errs)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateDataset() ValidationErrors {
	var errs ValidationErrors
	d := c.Dataset
	if d.Path == "" && d.URL == "" && d.URLFile == "" {
		errs = append(errs, ValidationError{
			Field:   "dataset",
			Message: "one of path, url or url_file is required",
		})
	}
	if d.URL != "" {
		if _, err := dataset.ResolveURL(d.URL); err != nil {
			errs = append(errs, ValidationError{Field: "dataset.url", Message: err.Error()})
		}
	}
	if d.BatchSize <= 0 || d.BatchSize > 50 {
		errs = append(errs, ValidationError{
			Field:   "dataset.batch_size",
			Message: fmt.Sprintf("must be in [1, 50], got %d", d.BatchSize),
		})
	}
	if d.BatchesFile == "" {
		errs = append(errs, ValidationError{Field: "dataset.batches_file", Message: "is required"})
	}
	if d.QueriesFile == "" {
		errs = append(errs, ValidationError{Field: "dataset.queries_file", Message: "is required"})
	}
	for _, n := range d.Categories {
		cat, err := dataset.ParseCategory(fmt.Sprint(n))
		if err != nil || !cat.Scored() {
			errs = append(errs, ValidationError{
				Field:   "dataset.categories",
				Message: fmt.Sprintf("category %d is not a scored category", n),
			})
		}
	}
	return errs
}

func (c *Config) validateMemory() ValidationErrors {
	var errs ValidationErrors
	if c.Memory.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "memory.endpoint", Message: "is required"})
	}
	if c.Memory.Collection == "" {
		errs = append(errs, ValidationError{Field: "memory.collection", Message: "is required"})
	}
	if (c.Memory.AccessKey == "") != (c.Memory.SecretKey == "") {
		errs = append(errs, ValidationError{
			Field:   "memory.access_key",
			Message: "access_key and secret_key must be set together",
		})
	}
	return errs
}

func (c *Config) validateModel() ValidationErrors {
	var errs ValidationErrors
	if c.Model.Name == "" {
		errs = append(errs, ValidationError{Field: "model.name", Message: "is required"})
	}
	if c.Model.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "model.api_key",
			Message: "is required (set OPENAI_API_KEY)",
		})
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "model.max_tokens",
			Message: fmt.Sprintf("must not be negative, got %d", c.Model.MaxTokens),
		})
	}
	if c.Model.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "model.timeout", Message: "must not be negative"})
	}
	if r := c.Model.MaxRetries; r != nil && *r < 0 {
		errs = append(errs, ValidationError{
			Field:   "model.max_retries",
			Message: fmt.Sprintf("must not be negative, got %d", *r),
		})
	}
	return errs
}

func (c *Config) validateEvaluation() ValidationErrors {
	var errs ValidationErrors
	e := c.Evaluation
	if e.Concurrency <= 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.concurrency",
			Message: fmt.Sprintf("must be positive, got %d", e.Concurrency),
		})
	}
	if e.QPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.qps",
			Message: fmt.Sprintf("must not be negative, got %g", e.QPS),
		})
	}
	if e.MemoryLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.memory_limit",
			Message: fmt.Sprintf("must be positive, got %d", e.MemoryLimit),
		})
	}
	if e.ProfileLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.profile_limit",
			Message: fmt.Sprintf("must not be negative, got %d", e.ProfileLimit),
		})
	}
	return errs
}

func (c *Config) validateReport() ValidationErrors {
	var errs ValidationErrors
	if c.Report.Dir == "" {
		errs = append(errs, ValidationError{Field: "report.dir", Message: "is required"})
	}
	if t := c.Report.TOS; t.Bucket != "" && t.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "report.tos.endpoint",
			Message: "is required when report.tos.bucket is set",
		})
	}
	return errs
}

func (c *Config) validateHistory() ValidationErrors {
	var errs ValidationErrors
	switch c.History.Backend {
	case "", HistoryNone:
	case HistoryLocal:
		if c.History.Dir == "" {
			errs = append(errs, ValidationError{Field: "history.dir", Message: "is required for the local backend"})
		}
	case HistoryMySQL:
		if c.History.DSN == "" {
			errs = append(errs, ValidationError{Field: "history.dsn", Message: "is required for the mysql backend"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "history.backend",
			Message: fmt.Sprintf("unknown backend %q", c.History.Backend),
		})
	}
	return errs
}

func dedupe(errs ValidationErrors) ValidationErrors {
	seen := make(map[string]bool, len(errs))
	out := errs[:0]
	for _, e := range errs {
		k := e.Field + "\x00" + e.Message
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

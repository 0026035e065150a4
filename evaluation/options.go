//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"golang.org/x/time/rate"

	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

const defaultConcurrency = 1

type options struct {
	concurrency  int
	limiter      *rate.Limiter
	memoryLimit  int
	profileLimit int
	keepAnswers  bool
	runID        string
	tokens       *TokenTracker
}

func newOptions(opt ...Option) *options {
	opts := &options{
		concurrency:  defaultConcurrency,
		memoryLimit:  memorystore.DefaultMemoryLimit,
		profileLimit: memorystore.DefaultProfileLimit,
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures an Evaluator.
type Option func(*options)

// WithConcurrency sets the number of queries evaluated at once. One keeps
// the queries strictly sequential.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRateLimit caps the rate at which queries are started. A non-positive
// qps disables the limit.
func WithRateLimit(qps float64, burst int) Option {
	return func(o *options) {
		if qps <= 0 {
			o.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithMemoryLimit sets the number of memories retrieved per query.
func WithMemoryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.memoryLimit = n
		}
	}
}

// WithProfileLimit sets the number of profile snippets retrieved per query.
func WithProfileLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.profileLimit = n
		}
	}
}

// WithKeepAnswers keeps per-query answers and explanations in the report.
func WithKeepAnswers(keep bool) Option {
	return func(o *options) {
		o.keepAnswers = keep
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithTokenTracker attaches the tracker whose totals go into the report.
func WithTokenTracker(t *TokenTracker) Option {
	return func(o *options) {
		o.tokens = t
	}
}

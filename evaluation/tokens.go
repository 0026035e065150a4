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
	"context"
	"sync/atomic"

	"trpc.group/trpc-go/trpc-memory-eval/telemetry/metric"
)

// TokenUsage is the token total of a run.
type TokenUsage struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// TokenTracker sums token usage reported by the inference backend. It is
// safe for concurrent use.
type TokenTracker struct {
	calls      atomic.Int64
	prompt     atomic.Int64
	completion atomic.Int64
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records the usage of one backend call.
func (t *TokenTracker) Add(ctx context.Context, prompt, completion int) {
	t.calls.Add(1)
	t.prompt.Add(int64(prompt))
	t.completion.Add(int64(completion))
	metric.RecordTokens(ctx, prompt, completion)
}

// Usage returns the current totals.
func (t *TokenTracker) Usage() TokenUsage {
	u := TokenUsage{
		Calls:            t.calls.Load(),
		PromptTokens:     t.prompt.Load(),
		CompletionTokens: t.completion.Load(),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

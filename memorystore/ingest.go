//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package memorystore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/telemetry/metric"
)

const defaultIngestConcurrency = 4

// IngestOptions configures Ingest.
type IngestOptions struct {
	// Concurrency caps in-flight AddBatch calls. Defaults to 4.
	Concurrency int
	// OnBatch is called after every batch, with a nil error on success.
	OnBatch func(batch *dataset.MemoryBatch, err error)
}

// BatchFailure records one batch that could not be ingested.
type BatchFailure struct {
	BuildIndex int
	Err        error
}

// Error implements the error interface.
func (f *BatchFailure) Error() string {
	return fmt.Sprintf("batch %d: %v", f.BuildIndex, f.Err)
}

// Unwrap returns the underlying error.
func (f *BatchFailure) Unwrap() error { return f.Err }

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	Added    int
	Failures []*BatchFailure
	// Skipped counts batches never sent because ctx was cancelled.
	Skipped int
}

// Ingest sends batches in parallel. Each batch is independent, so a failed
// batch is recorded and the rest continue. The returned error is non-nil only
// when ctx ends before every batch was submitted.
func Ingest(ctx context.Context, client Client, batches []*dataset.MemoryBatch, opts IngestOptions) (*IngestResult, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultIngestConcurrency
	}
	var (
		mu    sync.Mutex
		added atomic.Int64
		res   = &IngestResult{}
	)
	g := new(errgroup.Group)
	g.SetLimit(limit)

	submitted := 0
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		b := b
		submitted++
		g.Go(func() error {
			err := client.AddBatch(ctx, b, b.SessionID())
			metric.RecordBatch(ctx, err)
			if opts.OnBatch != nil {
				opts.OnBatch(b, err)
			}
			if err != nil {
				log.Warnf("memorystore: add batch %d: %v", b.BuildIndex, err)
				mu.Lock()
				res.Failures = append(res.Failures, &BatchFailure{BuildIndex: b.BuildIndex, Err: err})
				mu.Unlock()
				return nil
			}
			added.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(res.Failures, func(a, b *BatchFailure) int { return a.BuildIndex - b.BuildIndex })
	res.Added = int(added.Load())
	res.Skipped = len(batches) - submitted
	if res.Skipped > 0 {
		return res, fmt.Errorf("ingest interrupted after %d of %d batches: %w", submitted, len(batches), ctx.Err())
	}
	return res, nil
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package memorystore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore/memorystoretest"
)

func TestMemory_String(t *testing.T) {
	m := memorystore.Memory{Time: 1672538400000, Text: "I adopted a cat yesterday."}
	assert.Equal(t, "(2023-01-01T02:00:00Z) I adopted a cat yesterday.", m.String())
	assert.Equal(t, "no time", memorystore.Memory{Text: "no time"}.String())

	joined := memorystore.Join([]memorystore.Memory{
		{Time: 1678854600000, Text: "I went to the vet yesterday."},
		m,
	})
	assert.Equal(t, "(2023-03-15T04:30:00Z) I went to the vet yesterday.\n(2023-01-01T02:00:00Z) I adopted a cat yesterday.", joined)
}

func makeBatches(n int) []*dataset.MemoryBatch {
	out := make([]*dataset.MemoryBatch, n)
	for i := range out {
		out[i] = &dataset.MemoryBatch{
			BuildIndex: i,
			Messages:   []dataset.MemoryRecord{{Role: "user", RoleName: "A", Content: "x", Time: 1}},
		}
	}
	return out
}

func TestIngest_CollectsFailures(t *testing.T) {
	store := &memorystoretest.Store{
		AddErr: func(b *dataset.MemoryBatch) error {
			if b.BuildIndex%3 == 0 {
				return errors.New("boom")
			}
			return nil
		},
	}
	var callbacks atomic.Int32
	res, err := memorystore.Ingest(context.Background(), store, makeBatches(10), memorystore.IngestOptions{
		Concurrency: 3,
		OnBatch:     func(*dataset.MemoryBatch, error) { callbacks.Add(1) },
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Added)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Failures, 4)
	for i, want := range []int{0, 3, 6, 9} {
		assert.Equal(t, want, res.Failures[i].BuildIndex)
	}
	assert.Equal(t, int32(10), callbacks.Load())
	assert.Contains(t, store.Added, "session_1")
	assert.NotContains(t, store.Added, "session_0")
}

func TestIngest_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	store := &memorystoretest.Store{
		AddErr: func(*dataset.MemoryBatch) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
	}
	res, err := memorystore.Ingest(context.Background(), store, makeBatches(12), memorystore.IngestOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Added)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := memorystore.Ingest(ctx, &memorystoretest.Store{}, makeBatches(5), memorystore.IngestOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, 0, res.Added)
}

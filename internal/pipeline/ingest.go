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
	"fmt"
	"os"

	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

// Ingest reads the batches file and adds every batch to store, creating the
// collection first when configured.
func Ingest(ctx context.Context, cfg *config.Config, store memorystore.Client) (*memorystore.IngestResult, error) {
	batches, err := readFile(cfg.Dataset.BatchesFile, func(f *os.File) ([]*dataset.MemoryBatch, error) {
		return dataset.ReadBatches(f)
	})
	if err != nil {
		return nil, err
	}
	if cfg.Ingest.CreateCollection {
		if err := store.CreateCollection(ctx, cfg.Memory.Collection); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", cfg.Memory.Collection, err)
		}
	}
	total := len(batches)
	res, err := memorystore.Ingest(ctx, store, batches, memorystore.IngestOptions{
		Concurrency: cfg.Ingest.Concurrency,
		OnBatch: func(b *dataset.MemoryBatch, err error) {
			if err != nil {
				log.Warnf("ingest batch %d of %d failed: %v", b.BuildIndex, total, err)
				return
			}
			log.Debugf("ingested batch %d of %d", b.BuildIndex, total)
		},
	})
	if res != nil {
		log.Infof("ingested %d of %d batches, %d failed, %d not sent",
			res.Added, total, len(res.Failures), res.Skipped)
	}
	return res, err
}

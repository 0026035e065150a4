//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package pipeline runs the prepare, ingest and evaluate stages from a
// config.Config.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/log"
)

// PrepareResult summarizes the prepare stage.
type PrepareResult struct {
	DatasetPath  string
	Records      int
	Batches      int
	Queries      int
	DroppedTurns int
	// Errors counts skipped records, sessions and qa entries.
	Errors int
}

// Prepare loads the dataset, normalizes it into memory batches, extracts
// the queries and writes both intermediate files.
func Prepare(ctx context.Context, cfg *config.Config) (*PrepareResult, error) {
	path, err := datasetPath(ctx, cfg.Dataset)
	if err != nil {
		return nil, err
	}
	parsed, err := dataset.LoadFile(path)
	if err != nil {
		return nil, err
	}
	res := &PrepareResult{DatasetPath: path, Records: len(parsed.Records)}
	warnAll("dataset", parsed.Errors)
	res.Errors += len(parsed.Errors)

	norm := dataset.NewNormalizer(dataset.WithBatchSize(cfg.Dataset.BatchSize)).Normalize(parsed.Records)
	res.Errors += len(norm.Errors)
	res.DroppedTurns = norm.DroppedTurns
	res.Batches = len(norm.Batches)

	queries, qerrs := dataset.ExtractQueries(parsed.Records)
	warnAll("queries", qerrs)
	res.Errors += len(qerrs)
	filter, err := queryFilter(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	queries = dataset.FilterQueries(queries, filter)
	res.Queries = len(queries)

	if err := writeFile(cfg.Dataset.BatchesFile, func(f *os.File) error {
		return dataset.WriteBatches(f, norm.Batches)
	}); err != nil {
		return nil, err
	}
	if err := writeFile(cfg.Dataset.QueriesFile, func(f *os.File) error {
		return dataset.WriteQueries(f, queries)
	}); err != nil {
		return nil, err
	}
	log.Infof("prepared %d batches and %d queries from %d conversations (%d dropped turns, %d skipped items)",
		res.Batches, res.Queries, res.Records, res.DroppedTurns, res.Errors)
	return res, nil
}

func datasetPath(ctx context.Context, d config.DatasetConfig) (string, error) {
	if d.Path != "" {
		return d.Path, nil
	}
	raw := d.URL
	if raw == "" {
		var err error
		if raw, err = dataset.ReadURLFile(d.URLFile); err != nil {
			return "", err
		}
	}
	return dataset.NewFetcher(d.Dir, dataset.WithForce(d.Force)).Fetch(ctx, raw)
}

func queryFilter(d config.DatasetConfig) (dataset.QueryFilter, error) {
	f := dataset.QueryFilter{SampleID: d.SampleID, Max: d.MaxQueries}
	for _, n := range d.Categories {
		c, err := dataset.ParseCategory(fmt.Sprint(n))
		if err != nil {
			return f, err
		}
		f.Categories = append(f.Categories, c)
	}
	return f, nil
}

// writeFile replaces path atomically.
func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readFile[T any](path string, read func(*os.File) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return v, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

func warnAll(stage string, errs []error) {
	for _, err := range errs {
		log.Warnf("%s: %v", stage, err)
	}
}

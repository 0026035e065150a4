//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package evalresult stores the reports of past runs.
package evalresult

import (
	"context"
	"fmt"
	"os"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
)

// Manager persists run reports.
type Manager interface {
	// Save stores report under its run id, replacing an earlier copy.
	Save(ctx context.Context, report *evaluation.Report) error
	// Get loads the report of runID. A missing run wraps os.ErrNotExist.
	Get(ctx context.Context, runID string) (*evaluation.Report, error)
	// List returns the stored run ids, newest first.
	List(ctx context.Context) ([]string, error)
	// Close releases owned resources.
	Close() error
}

// NotFound returns the error for a missing run.
func NotFound(runID string) error {
	return fmt.Errorf("run %s not found: %w", runID, os.ErrNotExist)
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package local stores run reports as JSON files.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
)

const fileSuffix = ".report.json"

var _ evalresult.Manager = (*manager)(nil)

// manager implements the evalresult.Manager interface using local file storage.
type manager struct {
	baseDir string
	mu      sync.Mutex
}

// NewManager creates a file based manager writing <base dir>/<run id>.report.json.
func NewManager(opt ...evalresult.Option) evalresult.Manager {
	opts := evalresult.NewOptions(opt...)
	return &manager{baseDir: opts.BaseDir}
}

// Save writes the report atomically.
func (m *manager) Save(_ context.Context, report *evaluation.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.RunID == "" {
		return errors.New("run id is empty")
	}
	path, err := m.reportPath(report.RunID)
	if err != nil {
		return err
	}
	data, err := evaluation.MarshalReport(report)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Get loads the report of runID.
func (m *manager) Get(_ context.Context, runID string) (*evaluation.Report, error) {
	path, err := m.reportPath(runID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := evaluation.LoadReport(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, evalresult.NotFound(runID)
	}
	return r, err
}

// List returns the stored run ids ordered by file modification time, newest first.
func (m *manager) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	type item struct {
		id      string
		modNano int64
	}
	items := make([]item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		items = append(items, item{id: strings.TrimSuffix(name, fileSuffix), modNano: info.ModTime().UnixNano()})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].modNano != items[j].modNano {
			return items[i].modNano > items[j].modNano
		}
		return items[i].id < items[j].id
	})
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// Close is a no-op.
func (m *manager) Close() error {
	return nil
}

// reportPath keeps every run id inside baseDir.
func (m *manager) reportPath(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) ||
		filepath.Base(runID) != runID {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(m.baseDir, runID+fileSuffix), nil
}

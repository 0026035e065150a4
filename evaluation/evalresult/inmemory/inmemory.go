//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package inmemory keeps run reports in process memory.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
)

var _ evalresult.Manager = (*Manager)(nil)

// Manager implements evalresult.Manager with a map.
type Manager struct {
	mu      sync.RWMutex
	reports map[string]*evaluation.Report
	order   []string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{reports: make(map[string]*evaluation.Report)}
}

// Save stores report.
func (m *Manager) Save(_ context.Context, report *evaluation.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.RunID == "" {
		return errors.New("run id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[report.RunID]; !ok {
		m.order = append(m.order, report.RunID)
	}
	cp := *report
	m.reports[report.RunID] = &cp
	return nil
}

// Get returns a copy of the stored report.
func (m *Manager) Get(_ context.Context, runID string) (*evaluation.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[runID]
	if !ok {
		return nil, evalresult.NotFound(runID)
	}
	cp := *r
	return &cp, nil
}

// List returns run ids, newest first.
func (m *Manager) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		ids = append(ids, m.order[i])
	}
	return ids, nil
}

// Close is a no-op.
func (m *Manager) Close() error {
	return nil
}

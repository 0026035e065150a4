//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
)

func report(id string, outcomes ...evaluation.Outcome) *evaluation.Report {
	r := &evaluation.Report{
		RunID:   id,
		Results: evaluation.CategoryResult{dataset.CategoryTemporal: outcomes},
	}
	r.Categories, r.Overall = r.Results.Stats()
	r.Evaluated = r.Overall.Count
	return r
}

func TestManagerSaveGetList(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "history")
	m := NewManager(evalresult.WithBaseDir(dir))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	older := report("run-old", evaluation.OutcomeCorrect)
	newer := report("run-new", evaluation.OutcomeCorrect, evaluation.OutcomeWrong)
	require.NoError(t, m.Save(ctx, older))
	require.NoError(t, m.Save(ctx, newer))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "run-old"+fileSuffix), past, past))

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ids, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-new", "run-old"}, ids)

	got, err := m.Get(ctx, "run-new")
	require.NoError(t, err)
	assert.Equal(t, newer.Overall, got.Overall)
	assert.Equal(t, newer.Results, got.Results)

	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Error(t, m.Save(ctx, nil))
	assert.Error(t, m.Save(ctx, &evaluation.Report{}))
	assert.NoError(t, m.Close())
}

func TestNewManagerDefaultDir(t *testing.T) {
	m := NewManager().(*manager)
	assert.Equal(t, filepath.Join("results", "history"), filepath.Clean(m.baseDir))
}

func TestManagerRejectsRunIDOutsideBaseDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "history")
	m := NewManager(evalresult.WithBaseDir(dir))

	outside := report("x", evaluation.OutcomeCorrect)
	data, err := evaluation.MarshalReport(outside)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"+fileSuffix), data, 0o644))

	for _, id := range []string{"../x", "..", ".", "a/b", `a\b`} {
		_, err := m.Get(ctx, id)
		assert.ErrorContains(t, err, "invalid run id", id)
		assert.ErrorContains(t, m.Save(ctx, report(id, evaluation.OutcomeCorrect)), "invalid run id", id)
	}
	_, err = os.Stat(filepath.Join(root, "history"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

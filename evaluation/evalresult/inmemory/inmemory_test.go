//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
)

func TestManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	assert.Error(t, m.Save(ctx, nil))
	assert.Error(t, m.Save(ctx, &evaluation.Report{}))

	require.NoError(t, m.Save(ctx, &evaluation.Report{RunID: "a", Evaluated: 1}))
	require.NoError(t, m.Save(ctx, &evaluation.Report{RunID: "b", Evaluated: 2}))
	require.NoError(t, m.Save(ctx, &evaluation.Report{RunID: "a", Evaluated: 3}))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Evaluated)
	got.Evaluated = 99
	again, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Evaluated)

	_, err = m.Get(ctx, "missing")
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, m.Close())
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	storage "trpc.group/trpc-go/trpc-memory-eval/storage/mysql"
)

func newManager(t *testing.T) (*manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return &manager{db: storage.Wrap(db), table: "test_" + TableNameRuns}, mock
}

func useOpen(t *testing.T, db *sql.DB, wantDSN string) {
	t.Helper()
	old := storage.Open
	storage.Open = func(_ context.Context, cfg storage.Config) (storage.Client, error) {
		assert.Equal(t, wantDSN, cfg.DSN)
		return storage.Wrap(db), nil
	}
	t.Cleanup(func() { storage.Open = old })
}

func TestNewCreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	useOpen(t, db, "dsn")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS test_memeval_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	m, err := New(WithMySQLClientDSN("dsn"), WithTablePrefix("test_"), WithInitTimeout(time.Second))
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSkipDBInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	useOpen(t, db, "dsn")

	m, err := New(WithMySQLClientDSN("dsn"), WithSkipDBInit(true))
	require.NoError(t, err)
	mock.ExpectClose()
	require.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewInitError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	useOpen(t, db, "dsn")

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("denied"))
	mock.ExpectClose()
	_, err = New(WithMySQLClientDSN("dsn"))
	assert.ErrorContains(t, err, "init database failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewBuildClientError(t *testing.T) {
	old := storage.Open
	storage.Open = func(context.Context, storage.Config) (storage.Client, error) {
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { storage.Open = old })

	_, err := New(WithMySQLClientDSN("dsn"), WithSkipDBInit(true))
	assert.ErrorContains(t, err, "boom")
}

func TestSave(t *testing.T) {
	m, mock := newManager(t)
	r := &evaluation.Report{
		RunID:     "run-1",
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Omitted:   1,
		Results: evaluation.CategoryResult{
			dataset.CategoryTemporal: {evaluation.OutcomeCorrect, evaluation.OutcomeWrong, evaluation.OutcomeFailed},
		},
	}
	r.Categories, r.Overall = r.Results.Stats()
	r.Evaluated = r.Overall.Count

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO test_memeval_runs")).
		WithArgs("run-1", sqlmock.AnyArg(), sqlmock.AnyArg(), 3, 1, 1, 1, 1, 0.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, m.Save(context.Background(), r))

	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("deadlock"))
	assert.ErrorContains(t, m.Save(context.Background(), r), "store run run-1")

	assert.Error(t, m.Save(context.Background(), nil))
	assert.Error(t, m.Save(context.Background(), &evaluation.Report{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	m, mock := newManager(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT report FROM test_memeval_runs WHERE run_id = ?")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow([]byte(`{"run_id":"run-1","evaluated":4,"omitted":2}`)))
	r, err := m.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, 4, r.Evaluated)
	assert.Equal(t, 2, r.Omitted)

	mock.ExpectQuery("SELECT report").WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"report"}))
	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	mock.ExpectQuery("SELECT report").WithArgs("bad").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow([]byte(`{`)))
	_, err = m.Get(ctx, "bad")
	assert.ErrorContains(t, err, "unmarshal run bad")

	_, err = m.Get(ctx, "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT run_id FROM test_memeval_runs ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow("run-2").AddRow("run-1"))
	ids, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2", "run-1"}, ids)

	mock.ExpectQuery("SELECT run_id").WillReturnRows(sqlmock.NewRows([]string{"run_id"}))
	ids, err = m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)

	mock.ExpectQuery("SELECT run_id").WillReturnError(errors.New("gone"))
	_, err = m.List(context.Background())
	assert.ErrorContains(t, err, "list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr string
	}{
		{name: "empty", wantErr: "mysql: dsn is empty"},
		{name: "malformed", dsn: "user:pw@tcp(localhost:3306", wantErr: "mysql: parse dsn"},
		{
			name: "adds parseTime",
			dsn:  "user:pw@tcp(localhost:3306)/memeval",
			want: "user:pw@tcp(localhost:3306)/memeval?parseTime=true",
		},
		{
			name: "keeps parseTime",
			dsn:  "user:pw@tcp(localhost:3306)/memeval?parseTime=true",
			want: "user:pw@tcp(localhost:3306)/memeval?parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeDSN(tt.dsn)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{MaxOpenConns: 4, ConnMaxLifetime: time.Minute})
	assert.EqualError(t, err, "mysql: dsn is empty")
}

func TestWrap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := Wrap(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM runs").WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := c.Exec(ctx, "DELETE FROM runs WHERE run_id = ?", "r1")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectQuery("SELECT run_id FROM runs").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow("r2").AddRow("r1"))
	var ids []string
	err = c.Query(ctx, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}, "SELECT run_id FROM runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, ids)

	mock.ExpectQuery("SELECT accuracy FROM runs").WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"accuracy"}).AddRow(0.75))
	var acc float64
	require.NoError(t, c.QueryRow(ctx, []any{&acc}, "SELECT accuracy FROM runs WHERE run_id = ?", "r1"))
	assert.Equal(t, 0.75, acc)

	mock.ExpectQuery("SELECT accuracy FROM runs").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"accuracy"}))
	err = c.QueryRow(ctx, []any{&acc}, "SELECT accuracy FROM runs WHERE run_id = ?", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery("SELECT run_id FROM runs").WillReturnError(errors.New("gone"))
	err = c.Query(ctx, func(*sql.Rows) error { return nil }, "SELECT run_id FROM runs")
	assert.EqualError(t, err, "gone")

	mock.ExpectClose()
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package mysql stores run reports in MySQL.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
	storage "trpc.group/trpc-go/trpc-memory-eval/storage/mysql"
)

// TableNameRuns is the base table name; the configured prefix is prepended.
const TableNameRuns = "memeval_runs"

const sqlCreateRunsTable = `
		CREATE TABLE IF NOT EXISTS {{TABLE_NAME}} (
			id BIGINT NOT NULL AUTO_INCREMENT,
			run_id VARCHAR(64) NOT NULL,
			started_at TIMESTAMP(6) NULL,
			finished_at TIMESTAMP(6) NULL,
			evaluated INT NOT NULL DEFAULT 0,
			correct INT NOT NULL DEFAULT 0,
			wrong INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			omitted INT NOT NULL DEFAULT 0,
			accuracy DOUBLE NOT NULL DEFAULT 0,
			report JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			PRIMARY KEY (id),
			UNIQUE KEY uniq_run_id (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

var _ evalresult.Manager = (*manager)(nil)

type manager struct {
	db    storage.Client
	table string
}

// New creates a MySQL-backed manager and creates its table unless
// WithSkipDBInit is set.
func New(opt ...Option) (evalresult.Manager, error) {
	opts := newOptions(opt...)
	ctx, cancel := context.WithTimeout(context.Background(), opts.initTimeout)
	defer cancel()
	db, err := storage.Open(ctx, storage.Config{DSN: opts.dsn})
	if err != nil {
		return nil, fmt.Errorf("create mysql client failed: %w", err)
	}
	m := &manager{db: db, table: opts.tablePrefix + TableNameRuns}
	if !opts.skipDBInit {
		if _, err := db.Exec(ctx, strings.ReplaceAll(sqlCreateRunsTable, "{{TABLE_NAME}}", m.table)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init database failed: %w", err)
		}
	}
	return m, nil
}

// Save upserts the report.
func (m *manager) Save(ctx context.Context, report *evaluation.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.RunID == "" {
		return errors.New("run id is empty")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, started_at, finished_at, evaluated, correct, wrong, failed, omitted, accuracy, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   started_at = VALUES(started_at),
		   finished_at = VALUES(finished_at),
		   evaluated = VALUES(evaluated),
		   correct = VALUES(correct),
		   wrong = VALUES(wrong),
		   failed = VALUES(failed),
		   omitted = VALUES(omitted),
		   accuracy = VALUES(accuracy),
		   report = VALUES(report),
		   updated_at = CURRENT_TIMESTAMP(6)`,
		m.table,
	)
	o := report.Overall
	if _, err := m.db.Exec(ctx, query,
		report.RunID, nullTime(report.StartedAt), nullTime(report.FinishedAt),
		report.Evaluated, o.Correct, o.Wrong, o.Failed, report.Omitted, o.Accuracy, payload,
	); err != nil {
		return fmt.Errorf("store run %s: %w", report.RunID, err)
	}
	return nil
}

// Get loads the report of runID.
func (m *manager) Get(ctx context.Context, runID string) (*evaluation.Report, error) {
	if runID == "" {
		return nil, errors.New("run id is empty")
	}
	var payload []byte
	query := fmt.Sprintf("SELECT report FROM %s WHERE run_id = ?", m.table)
	if err := m.db.QueryRow(ctx, []any{&payload}, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, evalresult.NotFound(runID)
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var r evaluation.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return &r, nil
}

// List returns run ids, newest first.
func (m *manager) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT run_id FROM %s ORDER BY created_at DESC, id DESC", m.table)
	ids := []string{}
	if err := m.db.Query(ctx, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}, query); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return ids, nil
}

// Close closes the connection pool.
func (m *manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

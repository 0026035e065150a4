//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package mysql opens MySQL connection pools for the run history store.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// Config describes a connection pool. Zero pool limits keep the
// database/sql defaults.
type Config struct {
	// DSN is user:password@tcp(host:3306)/dbname[?params].
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Client is the subset of database operations the history store needs.
type Client interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// Query calls next once per row.
	Query(ctx context.Context, next func(*sql.Rows) error, query string, args ...any) error
	// QueryRow scans the first row into dest. It returns sql.ErrNoRows when
	// there is none.
	QueryRow(ctx context.Context, dest []any, query string, args ...any) error
	Close() error
}

// Open connects to MySQL and pings the server. Tests replace it to inject a
// mocked database.
var Open = open

func open(ctx context.Context, cfg Config) (Client, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return Wrap(db), nil
}

// normalizeDSN validates dsn and turns on parseTime so TIMESTAMP columns
// scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("mysql: dsn is empty")
	}
	c, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}

// Wrap adapts db to Client.
func Wrap(db *sql.DB) Client {
	return sqlClient{db: db}
}

type sqlClient struct {
	db *sql.DB
}

func (c sqlClient) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c sqlClient) Query(ctx context.Context, next func(*sql.Rows) error, query string, args ...any) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := next(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c sqlClient) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	return c.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (c sqlClient) Close() error { return c.db.Close() }

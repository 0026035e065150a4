//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package mysql

import "time"

const defaultInitTimeout = 30 * time.Second

type options struct {
	dsn         string
	tablePrefix string
	skipDBInit  bool
	initTimeout time.Duration
}

func newOptions(opt ...Option) *options {
	opts := &options{initTimeout: defaultInitTimeout}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures the MySQL manager.
type Option func(*options)

// WithMySQLClientDSN sets the data source name.
func WithMySQLClientDSN(dsn string) Option {
	return func(o *options) {
		o.dsn = dsn
	}
}

// WithTablePrefix prepends prefix to the table name.
func WithTablePrefix(prefix string) Option {
	return func(o *options) {
		o.tablePrefix = prefix
	}
}

// WithSkipDBInit skips table creation.
func WithSkipDBInit(skip bool) Option {
	return func(o *options) {
		o.skipDBInit = skip
	}
}

// WithInitTimeout bounds connecting and table creation. Non-positive values keep the default.
func WithInitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initTimeout = d
		}
	}
}

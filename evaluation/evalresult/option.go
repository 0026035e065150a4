//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package evalresult

const defaultBaseDir = "results/history"

// Options configures file based managers.
type Options struct {
	BaseDir string
}

// NewOptions applies opt over the defaults.
func NewOptions(opt ...Option) *Options {
	opts := &Options{BaseDir: defaultBaseDir}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures the local evaluation result manager.
type Option func(*Options)

// WithBaseDir overrides the default base directory used to store results.
func WithBaseDir(dir string) Option {
	return func(m *Options) {
		if dir != "" {
			m.BaseDir = dir
		}
	}
}

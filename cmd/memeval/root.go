//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/internal/pipeline"
)

type rootFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
}

// app carries what every subcommand needs once the root pre-run is done.
type app struct {
	flags   rootFlags
	cfg     *config.Config
	closers []io.Closer
}

// newRootCmd builds the command tree. The caller closes a once the command
// has returned.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "memeval",
		Short:         "Evaluate temporal memory retrieval on the LoCoMo benchmark",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringSliceVar(&a.flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newPrepareCmd(a),
		newIngestCmd(a),
		newEvaluateCmd(a),
		newRunCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.flags.configPath, a.flags.envFiles...)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	a.cfg = cfg
	if c := pipeline.SetupLog(cfg); c != nil {
		a.closers = append(a.closers, c)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

func (a *app) validate(stages ...string) error {
	if err := a.cfg.Validate(stages...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

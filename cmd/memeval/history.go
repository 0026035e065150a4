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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-memory-eval/internal/pipeline"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect previous runs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List run ids, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withHistory(func(m evalresult.Manager) error {
					ids, err := m.List(cmd.Context())
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(cmd.OutOrStdout(), id)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <run id>",
			Short: "Print the summary of one run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withHistory(func(m evalresult.Manager) error {
					r, err := m.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					evaluation.PrintSummary(cmd.OutOrStdout(), r)
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) withHistory(fn func(evalresult.Manager) error) error {
	m, err := pipeline.NewHistory(a.cfg)
	if err != nil {
		return err
	}
	if m == nil {
		return errors.New("run history is disabled, set history.backend")
	}
	defer m.Close()
	return fn(m)
}

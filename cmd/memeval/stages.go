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
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/internal/pipeline"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

func newPrepareCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Download the dataset and write the memory batch and query files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("force") {
				a.cfg.Dataset.Force = force
			}
			if err := a.validate(config.StagePrepare); err != nil {
				return err
			}
			res, err := pipeline.Prepare(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d batches -> %s\n%d queries -> %s\n",
				res.Batches, a.cfg.Dataset.BatchesFile, res.Queries, a.cfg.Dataset.QueriesFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "download the dataset even if it exists")
	return cmd
}

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Add the prepared memory batches to the memory store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.validate(config.StageIngest); err != nil {
				return err
			}
			return a.ingest(cmd)
		},
	}
}

func (a *app) ingest(cmd *cobra.Command) error {
	store, err := pipeline.NewStore(a.cfg)
	if err != nil {
		return err
	}
	res, err := pipeline.Ingest(cmd.Context(), a.cfg, store)
	if err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d batches failed to ingest:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", f)
		}
	}
	return nil
}

func newEvaluateCmd(a *app) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Answer and grade the prepared queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("concurrency") {
				a.cfg.Evaluation.Concurrency = concurrency
			}
			if err := a.validate(config.StageEvaluate); err != nil {
				return err
			}
			return a.evaluate(cmd)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 1, "queries evaluated in parallel")
	return cmd
}

func (a *app) evaluate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	stopTelemetry, err := pipeline.StartTelemetry(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	store, err := pipeline.NewStore(a.cfg)
	if err != nil {
		return err
	}
	deps, err := a.evaluationDeps(store, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if deps.History != nil {
		defer deps.History.Close()
	}
	_, err = pipeline.Evaluate(ctx, a.cfg, deps)
	return err
}

func (a *app) evaluationDeps(store memorystore.Client, out io.Writer) (pipeline.Deps, error) {
	tracker := evaluation.NewTokenTracker()
	answerModel, judgeModel := pipeline.NewModels(a.cfg, tracker)
	sinks, err := pipeline.NewSinks(a.cfg)
	if err != nil {
		return pipeline.Deps{}, err
	}
	history, err := pipeline.NewHistory(a.cfg)
	if err != nil {
		return pipeline.Deps{}, err
	}
	return pipeline.Deps{
		Store:   store,
		Answer:  answerModel,
		Judge:   judgeModel,
		Tracker: tracker,
		Sinks:   sinks,
		History: history,
		Out:     out,
	}, nil
}

func newRunCmd(a *app) *cobra.Command {
	var skipIngest bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run prepare, ingest and evaluate in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages := []string{config.StagePrepare, config.StageEvaluate}
			if !skipIngest {
				stages = append(stages, config.StageIngest)
			}
			if err := a.validate(stages...); err != nil {
				return err
			}
			if _, err := pipeline.Prepare(cmd.Context(), a.cfg); err != nil {
				return fmt.Errorf("prepare: %w", err)
			}
			if !skipIngest {
				if err := a.ingest(cmd); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}
			if err := a.evaluate(cmd); err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "evaluate against an already populated collection")
	return cmd
}

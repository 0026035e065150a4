//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"

	"trpc.group/trpc-go/trpc-memory-eval/answer"
	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-memory-eval/grader"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
	"trpc.group/trpc-go/trpc-memory-eval/model"
)

// Sink is a named report destination.
type Sink struct {
	Name     string
	Uploader evaluation.Uploader
}

// Deps are the collaborators of the evaluate stage.
type Deps struct {
	Store  memorystore.Client
	Answer model.Model
	Judge  model.Model
	// Tracker, if set, is attached to the report.
	Tracker *evaluation.TokenTracker
	Sinks   []Sink
	// History, if set, receives every report.
	History evalresult.Manager
	// Out receives the summary table. Nil means no table.
	Out io.Writer
}

// Evaluate reads the queries file, runs the evaluation and publishes the
// report. An interrupted run still saves and publishes its partial report
// and returns the interruption error alongside it.
func Evaluate(ctx context.Context, cfg *config.Config, deps Deps) (*evaluation.Report, error) {
	queries, err := readFile(cfg.Dataset.QueriesFile, func(f *os.File) ([]*dataset.QueryRecord, error) {
		return dataset.ReadQueries(f)
	})
	if err != nil {
		return nil, err
	}
	ec := cfg.Evaluation
	opts := []evaluation.Option{
		evaluation.WithConcurrency(ec.Concurrency),
		evaluation.WithRateLimit(ec.QPS, ec.Burst),
		evaluation.WithMemoryLimit(ec.MemoryLimit),
		evaluation.WithProfileLimit(ec.ProfileLimit),
		evaluation.WithKeepAnswers(ec.KeepAnswers),
	}
	if deps.Tracker != nil {
		opts = append(opts, evaluation.WithTokenTracker(deps.Tracker))
	}
	var genOpts []answer.Option
	var gradeOpts []grader.Option
	if cfg.Model.MaxTokens > 0 {
		genOpts = append(genOpts, answer.WithMaxTokens(cfg.Model.MaxTokens))
		gradeOpts = append(gradeOpts, grader.WithMaxTokens(cfg.Model.MaxTokens))
	}
	ev, err := evaluation.New(
		deps.Store,
		answer.New(deps.Answer, genOpts...),
		grader.New(deps.Judge, gradeOpts...),
		opts...,
	)
	if err != nil {
		return nil, err
	}
	log.Infof("evaluating %d queries with concurrency %d", len(queries), ec.Concurrency)
	report, runErr := ev.Run(ctx, queries)
	if report == nil {
		return nil, runErr
	}
	// Publishing ignores the cancellation that ended Run.
	pubCtx := context.WithoutCancel(ctx)
	if err := publish(pubCtx, cfg, deps, report); err != nil {
		return report, errors.Join(runErr, err)
	}
	return report, runErr
}

func publish(ctx context.Context, cfg *config.Config, deps Deps, report *evaluation.Report) error {
	p, err := evaluation.SaveReport(cfg.Report.Dir, report)
	if err != nil {
		return err
	}
	log.Infof("report %s written to %s", report.RunID, p)
	if deps.Out != nil {
		evaluation.PrintSummary(deps.Out, report)
	}
	var errs []error
	for _, s := range deps.Sinks {
		loc, err := evaluation.UploadReport(ctx, s.Uploader, "", report)
		if err != nil {
			log.Errorf("%s: %v", s.Name, err)
			errs = append(errs, err)
			continue
		}
		log.Infof("report uploaded to %s", loc)
	}
	if deps.History != nil {
		if err := deps.History.Save(ctx, report); err != nil {
			log.Errorf("save run history: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

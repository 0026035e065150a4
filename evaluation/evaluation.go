//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package evaluation runs extracted queries through retrieval, answer
// generation and grading, and aggregates the verdicts per category.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/grader"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
	"trpc.group/trpc-go/trpc-memory-eval/telemetry/metric"
	"trpc.group/trpc-go/trpc-memory-eval/telemetry/trace"
)

// ErrAlreadyRun is returned by Run on an Evaluator that was already used.
var ErrAlreadyRun = errors.New("evaluation: evaluator already used")

// Generator produces an answer from retrieved context. It never fails; a
// backend failure yields an empty answer.
type Generator interface {
	Generate(ctx context.Context, memories, profile []string, question string) string
}

// Grader judges a generated answer against the gold answer.
type Grader interface {
	Grade(ctx context.Context, question, gold, generated string) (*grader.Result, error)
}

// State is the lifecycle of an Evaluator.
type State int32

const (
	StateInit State = iota
	StateIterating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIterating:
		return "ITERATING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Evaluator runs one evaluation. It is single use.
type Evaluator struct {
	store     memorystore.Client
	generator Generator
	grader    Grader
	opts      *options
	state     atomic.Int32
}

// New creates an Evaluator.
func New(store memorystore.Client, generator Generator, grader Grader, opt ...Option) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("memory store is nil")
	}
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if grader == nil {
		return nil, errors.New("grader is nil")
	}
	return &Evaluator{
		store:     store,
		generator: generator,
		grader:    grader,
		opts:      newOptions(opt...),
	}, nil
}

// State returns the current state.
func (e *Evaluator) State() State {
	return State(e.state.Load())
}

// Run evaluates queries and returns the report. Per-query failures are
// recorded in the report and never abort the run.
//
// When ctx ends, no further queries are started and the ones in flight are
// allowed to finish; queries that were not finished are counted as omitted.
// The partial report is returned together with an error wrapping ctx.Err().
func (e *Evaluator) Run(ctx context.Context, queries []*dataset.QueryRecord) (*Report, error) {
	if !e.state.CompareAndSwap(int32(StateInit), int32(StateIterating)) {
		return nil, ErrAlreadyRun
	}
	defer e.state.Store(int32(StateDone))

	runID := e.opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := time.Now()
	log.InfofContext(ctx, "evaluation: run %s started, %d queries, concurrency %d",
		runID, len(queries), e.opts.concurrency)

	pool, err := newUnitPool(e.opts.concurrency)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		results   = make(chan *unitResult, e.opts.concurrency)
		collected = make([]*unitResult, len(queries))
		coordDone = make(chan struct{})
		wg        sync.WaitGroup
		submitErr error
		waitErr   error
	)
	// The coordinator is the only writer of collected until it exits.
	go func() {
		defer close(coordDone)
		for r := range results {
			collected[r.pos] = r
		}
	}()

	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		if q == nil || !q.Category.Scored() {
			if q != nil {
				log.Warnf("evaluation: query %d has unscored category %d, skipped", q.Index, q.Category)
			}
			continue
		}
		if e.opts.limiter != nil {
			if err := e.opts.limiter.Wait(ctx); err != nil {
				waitErr = err
				break
			}
		}
		p := unitParamPool.Get().(*unitParam)
		p.ctx, p.pos, p.query, p.eval, p.results, p.wg = ctx, i, q, e, results, &wg
		wg.Add(1)
		if err := pool.Invoke(p); err != nil {
			wg.Done()
			p.reset()
			unitParamPool.Put(p)
			submitErr = fmt.Errorf("submit query %d: %w", q.Index, err)
			break
		}
	}
	wg.Wait()
	close(results)
	<-coordDone

	report := e.buildReport(runID, started, queries, collected)
	log.InfofContext(ctx, "evaluation: run %s done in %s, accuracy %.4f, %d failed, %d omitted",
		runID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		report.Overall.Accuracy, report.Overall.Failed, report.Omitted)
	if submitErr != nil {
		return report, submitErr
	}
	if err := ctx.Err(); err != nil && report.Omitted > 0 {
		return report, fmt.Errorf("evaluation interrupted, %d queries omitted: %w", report.Omitted, err)
	}
	if waitErr != nil {
		// The limiter gives up before ctx ends when the next token would
		// arrive after the deadline.
		return report, fmt.Errorf("evaluation rate limit, %d queries omitted: %w", report.Omitted, waitErr)
	}
	return report, nil
}

// evaluateQuery runs one query end to end. A panic in the store, generator
// or grader fails the query at the stage it happened in.
func (e *Evaluator) evaluateQuery(ctx context.Context, pos int, q *dataset.QueryRecord) (res *unitResult) {
	start := time.Now()
	ctx, span := trace.Tracer.Start(ctx, "memeval.query", oteltrace.WithAttributes(
		trace.KeyQueryIndex.Int(q.Index),
		trace.KeyCategory.Int(int(q.Category)),
	))
	defer span.End()

	res = &unitResult{pos: pos}
	stage := StageRetrieve
	fail := func(stage Stage, err error) *unitResult {
		if ctx.Err() != nil {
			res.omitted = true
			span.SetStatus(codes.Error, "cancelled")
			return res
		}
		res.outcome = OutcomeFailed
		res.failure = &QueryFailure{Index: q.Index, Category: q.Category, Stage: stage, Error: err.Error()}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(trace.KeyStage.String(string(stage)), trace.KeyOutcome.String(string(OutcomeFailed)))
		log.WarnfContext(ctx, "evaluation: query %d failed at %s: %v", q.Index, stage, err)
		metric.RecordQuery(ctx, q.Category.Name(), string(OutcomeFailed), time.Since(start))
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.ErrorfContext(ctx, "evaluation: query %d panicked at %s: %v\n%s", q.Index, stage, r, debug.Stack())
			res = fail(stage, fmt.Errorf("panic: %v", r))
		}
	}()

	memories, err := e.store.SearchMemories(ctx, q.Query, q.Participants, e.opts.memoryLimit)
	if err != nil {
		return fail(stage, err)
	}
	stage = StageProfile
	profile, err := e.store.SearchProfile(ctx, q.Query, q.Participants, e.opts.profileLimit)
	if err != nil {
		return fail(stage, err)
	}
	stage = StageAnswer
	rendered := memorystore.Render(memories)
	generated := e.generator.Generate(ctx, rendered, profile, q.Query)
	if ctx.Err() != nil {
		res.omitted = true
		return res
	}
	stage = StageGrade
	verdict, err := e.grader.Grade(ctx, q.Query, q.Answer, generated)
	if err != nil {
		return fail(stage, err)
	}

	res.outcome = OutcomeWrong
	if verdict.Correct {
		res.outcome = OutcomeCorrect
	}
	if e.opts.keepAnswers {
		res.detail = &QueryResult{
			Index:       q.Index,
			Category:    q.Category,
			Query:       q.Query,
			Gold:        q.Answer,
			Generated:   generated,
			Memories:    rendered,
			Outcome:     res.outcome,
			Explanation: verdict.Explanation,
		}
	}
	span.SetAttributes(trace.KeyOutcome.String(string(res.outcome)), trace.KeyMemories.Int(len(memories)))
	metric.RecordQuery(ctx, q.Category.Name(), string(res.outcome), time.Since(start))
	log.Debugf("evaluation: query %d %s", q.Index, res.outcome)
	return res
}

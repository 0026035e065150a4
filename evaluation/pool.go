//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
)

type unitParam struct {
	ctx     context.Context
	pos     int
	query   *dataset.QueryRecord
	eval    *Evaluator
	results chan<- *unitResult
	wg      *sync.WaitGroup
}

func (p *unitParam) reset() {
	p.ctx = nil
	p.pos = 0
	p.query = nil
	p.eval = nil
	p.results = nil
	p.wg = nil
}

var unitParamPool = &sync.Pool{
	New: func() any { return new(unitParam) },
}

// newUnitPool creates the worker pool. Invoke blocks while all workers are
// busy, which bounds the number of queries in flight.
func newUnitPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*unitParam)
		if !ok {
			panic("evaluation pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			unitParamPool.Put(param)
		}()
		param.results <- param.eval.evaluateQuery(param.ctx, param.pos, param.query)
	})
	if err != nil {
		return nil, fmt.Errorf("create evaluation pool: %w", err)
	}
	return pool, nil
}

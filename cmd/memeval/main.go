//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package main is the memeval command line tool. It prepares the LoCoMo
// dataset, ingests it into a memory store and evaluates retrieval-augmented
// answers with an LLM grader.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trpc.group/trpc-go/trpc-memory-eval/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		log.Errorf("memeval: %v", err)
		stop()
		os.Exit(1)
	}
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package memorystore defines the contract the evaluator uses to talk to an
// external memory service, plus helpers shared by implementations.
package memorystore

import (
	"context"
	"errors"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
)

// Defaults for search and collection creation.
const (
	DefaultMemoryLimit  = 15
	DefaultProfileLimit = 2

	// MemoryTypeEvent restricts a search to event memories.
	MemoryTypeEvent = "sys_event_v1"
	// MemoryTypeProfile restricts a search to profile memories.
	MemoryTypeProfile = "sys_profile_v1"
	// EventTypeProfileCollect is the builtin event that feeds profiles.
	EventTypeProfileCollect = "sys_profile_collect_v1"
)

// BuiltinEventTypes are enabled on every collection the evaluator creates.
var BuiltinEventTypes = []string{MemoryTypeEvent, EventTypeProfileCollect}

// BuiltinEntityTypes are enabled on every collection the evaluator creates.
var BuiltinEntityTypes = []string{MemoryTypeProfile}

// ErrBackendTransport marks a memory store call that failed after retries.
var ErrBackendTransport = errors.New("memory store backend error")

// Client is the memory store contract.
type Client interface {
	// CreateCollection creates the collection. Creating an existing
	// collection is not an error.
	CreateCollection(ctx context.Context, name string) error
	// AddBatch ingests one batch under sessionID. Delivery is at least once.
	AddBatch(ctx context.Context, batch *dataset.MemoryBatch, sessionID string) error
	// SearchMemories returns event memories of the participants, best first.
	SearchMemories(ctx context.Context, query string, participants []string, limit int) ([]Memory, error)
	// SearchProfile returns profile snippets of the participants.
	SearchProfile(ctx context.Context, query string, participants []string, limit int) ([]string, error)
}

// Memory is one retrieved event memory.
type Memory struct {
	// Time is epoch milliseconds, 0 when the store returned none.
	Time int64
	Text string
}

// String renders the memory the way the answer prompt expects it:
// "(2023-01-01T02:00:00Z) I adopted a cat yesterday."
func (m Memory) String() string {
	if m.Time == 0 {
		return m.Text
	}
	return "(" + time.UnixMilli(m.Time).UTC().Format(time.RFC3339) + ") " + m.Text
}

// Render formats memories in order.
func Render(memories []Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.String()
	}
	return out
}

// Join renders memories one per line.
func Join(memories []Memory) string {
	return strings.Join(Render(memories), "\n")
}

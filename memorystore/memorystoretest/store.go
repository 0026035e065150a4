//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package memorystoretest provides an in-memory memorystore.Client for tests.
package memorystoretest

import (
	"context"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

// Store is a scriptable memorystore.Client. Zero value is ready to use.
type Store struct {
	mu sync.Mutex

	// Memories and Profiles are returned by every search, truncated to limit.
	Memories []memorystore.Memory
	Profiles []string
	// AddErr, when set, decides the error for each AddBatch call.
	AddErr func(batch *dataset.MemoryBatch) error
	// SearchErr, when set, decides the error for each search call.
	SearchErr func(query string) error

	Collections []string
	Added       map[string]*dataset.MemoryBatch
	Searches    []Search
}

// Search records one search call.
type Search struct {
	Query        string
	Participants []string
	Limit        int
	Profile      bool
}

var _ memorystore.Client = (*Store)(nil)

// CreateCollection implements memorystore.Client.
func (s *Store) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Collections = append(s.Collections, name)
	return nil
}

// AddBatch implements memorystore.Client.
func (s *Store) AddBatch(ctx context.Context, batch *dataset.MemoryBatch, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.AddErr != nil {
		if err := s.AddErr(batch); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Added == nil {
		s.Added = make(map[string]*dataset.MemoryBatch)
	}
	s.Added[sessionID] = batch
	return nil
}

// SearchMemories implements memorystore.Client.
func (s *Store) SearchMemories(ctx context.Context, query string, participants []string, limit int) ([]memorystore.Memory, error) {
	if err := s.record(ctx, query, participants, limit, false); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memorystore.Memory(nil), s.Memories[:min(limit, len(s.Memories))]...), nil
}

// SearchProfile implements memorystore.Client.
func (s *Store) SearchProfile(ctx context.Context, query string, participants []string, limit int) ([]string, error) {
	if err := s.record(ctx, query, participants, limit, true); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Profiles[:min(limit, len(s.Profiles))]...), nil
}

func (s *Store) record(ctx context.Context, query string, participants []string, limit int, profile bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.Searches = append(s.Searches, Search{
		Query:        query,
		Participants: append([]string(nil), participants...),
		Limit:        limit,
		Profile:      profile,
	})
	s.mu.Unlock()
	if s.SearchErr != nil {
		return s.SearchErr(query)
	}
	return nil
}

// SearchCount returns the number of searches whose query contains substr.
func (s *Store) SearchCount(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sr := range s.Searches {
		if strings.Contains(sr.Query, substr) {
			n++
		}
	}
	return n
}

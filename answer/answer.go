//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package answer produces time-grounded answers from retrieved memories.
package answer

import (
	"context"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/model"
)

// DefaultMaxTokens bounds the answer length.
const DefaultMaxTokens = 4095

const emptySection = "(none)"

// Generator answers benchmark questions with a chat model.
type Generator struct {
	model     model.Model
	maxTokens int
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// New creates a Generator backed by m.
func New(m model.Model, opts ...Option) *Generator {
	g := &Generator{model: m, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildRequest returns the deterministic chat request for one question.
// memories are already rendered as "(<RFC3339>) <text>".
func (g *Generator) BuildRequest(memories, profile []string, question string) *model.Request {
	return &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage(systemPrompt),
			model.NewUserMessage(fmt.Sprintf(userPromptFormat, section(memories), section(profile), question)),
		},
		GenerationConfig: model.GenerationConfig{
			MaxTokens:   model.IntPtr(g.maxTokens),
			Temperature: model.Float64Ptr(0),
		},
	}
}

// Generate returns the raw model answer. Backend failures and empty output
// yield "" so the caller grades it like any other answer.
func (g *Generator) Generate(ctx context.Context, memories, profile []string, question string) string {
	ch, err := g.model.GenerateContent(ctx, g.BuildRequest(memories, profile, question))
	if err != nil {
		log.WarnfContext(ctx, "answer: generate %q: %v", question, err)
		return ""
	}
	var out string
	for rsp := range ch {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			log.WarnfContext(ctx, "answer: generate %q: %v", question, rsp.Error)
			continue
		}
		if c := rsp.Content(); c != "" && out == "" {
			out = c
		}
	}
	if out == "" {
		log.WarnfContext(ctx, "answer: empty answer for %q", question)
	}
	return out
}

func section(lines []string) string {
	if len(lines) == 0 {
		return emptySection
	}
	return strings.Join(lines, "\n")
}

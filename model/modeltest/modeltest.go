//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package modeltest provides a scriptable model.Model for tests.
package modeltest

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-memory-eval/model"
)

// ReplyFunc produces the response for one request. A non-nil error is
// returned from GenerateContent itself.
type ReplyFunc func(ctx context.Context, req *model.Request) (*model.Response, error)

// Model is a model.Model driven by a ReplyFunc.
type Model struct {
	Name  string
	Reply ReplyFunc

	mu       sync.Mutex
	requests []*model.Request
}

var _ model.Model = (*Model)(nil)

// New creates a Model.
func New(reply ReplyFunc) *Model {
	return &Model{Name: "stub", Reply: reply}
}

// Text returns a ReplyFunc that always answers content.
func Text(content string) ReplyFunc {
	return func(context.Context, *model.Request) (*model.Response, error) {
		return TextResponse(content), nil
	}
}

// TextResponse builds a successful response carrying content.
func TextResponse(content string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}},
		Usage:   &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Done:    true,
	}
}

// ErrorResponse builds an API-level error response.
func ErrorResponse(msg string) *model.Response {
	return &model.Response{
		Error: &model.ResponseError{Type: model.ErrorTypeAPIError, Message: msg},
		Done:  true,
	}
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	rsp, err := m.Reply(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan *model.Response, 1)
	if rsp != nil {
		ch <- rsp
	}
	close(ch)
	return ch, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.Name}
}

// Requests returns a copy of the requests seen so far.
func (m *Model) Requests() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

// UserPrompt returns the content of the last user message of req.
func UserPrompt(req *model.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == model.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/model"
)

// Model is a model.Model backed by the chat completions endpoint.
type Model struct {
	client     openai.Client
	name       string
	legacyMax  bool
	onRequest  ChatRequestCallbackFunc
	onResponse ChatResponseCallbackFunc
}

var _ model.Model = (*Model)(nil)

// New creates a Model that sends name as the model (or Azure deployment).
func New(name string, opts ...Option) *Model {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Model{
		client:     openai.NewClient(o.requestOptions()...),
		name:       name,
		legacyMax:  o.useLegacyMaxTokens(),
		onRequest:  o.onRequest,
		onResponse: o.onResponse,
	}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent implements model.Model. The returned channel yields exactly
// one Response, unless ctx is cancelled first.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	params := m.chatParams(req)
	ch := make(chan *model.Response, 1)
	go func() {
		defer close(ch)
		if m.onRequest != nil {
			m.onRequest(ctx, &params)
		}
		rsp := m.complete(ctx, &params)
		select {
		case ch <- rsp:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (m *Model) complete(ctx context.Context, params *openai.ChatCompletionNewParams) *model.Response {
	completion, err := m.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		rspErr := &model.ResponseError{Type: model.ErrorTypeAPIError, Message: err.Error()}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			rspErr.Code = apiErr.Code
		}
		return &model.Response{Error: rspErr, Done: true}
	}
	if m.onResponse != nil {
		m.onResponse(ctx, params, completion)
	}
	return toResponse(completion)
}

func toResponse(c *openai.ChatCompletion) *model.Response {
	rsp := &model.Response{ID: c.ID, Model: c.Model, Done: true}
	for _, choice := range c.Choices {
		rsp.Choices = append(rsp.Choices, model.Choice{
			Index:        int(choice.Index),
			Message:      model.NewAssistantMessage(choice.Message.Content),
			FinishReason: choice.FinishReason,
		})
	}
	if u := c.Usage; u.PromptTokens > 0 || u.CompletionTokens > 0 {
		rsp.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return rsp
}

func (m *Model) chatParams(req *model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: toMessages(req.Messages),
	}
	if so := req.StructuredOutput; so != nil {
		if format, ok := responseFormat(so); ok {
			params.ResponseFormat = format
		} else {
			log.Warnf("openai: ignoring structured output of type %q without a schema", so.Type)
		}
	}
	// o-series models reject max_tokens; older Azure versions reject
	// max_completion_tokens.
	if req.MaxTokens != nil {
		if m.legacyMax {
			params.MaxTokens = openai.Int(int64(*req.MaxTokens))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
		}
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	return params
}

func responseFormat(so *model.StructuredOutput) (openai.ChatCompletionNewParamsResponseFormatUnion, bool) {
	var format openai.ChatCompletionNewParamsResponseFormatUnion
	switch {
	case so.Type == model.StructuredOutputJSONSchema && so.JSONSchema != nil:
		schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   so.JSONSchema.Name,
			Schema: so.JSONSchema.Schema,
			Strict: openai.Bool(so.JSONSchema.Strict),
		}
		if so.JSONSchema.Description != "" {
			schema.Description = openai.String(so.JSONSchema.Description)
		}
		format.OfJSONSchema = &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema}
	case so.Type == model.StructuredOutputJSONObject:
		format.OfJSONObject = &shared.ResponseFormatJSONObjectParam{}
	default:
		return format, false
	}
	return format, true
}

// toMessages maps roles other than system and assistant to user.
func toMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case model.RoleSystem:
			out[i] = openai.SystemMessage(msg.Content)
		case model.RoleAssistant:
			out[i] = openai.AssistantMessage(msg.Content)
		default:
			out[i] = openai.UserMessage(msg.Content)
		}
	}
	return out
}

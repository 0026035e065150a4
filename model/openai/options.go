//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package openai implements model.Model on top of the OpenAI chat
// completions API, including Azure OpenAI deployments.
package openai

import (
	"context"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	openaiopt "github.com/openai/openai-go/option"
)

const defaultAzureAPIVersion = "2024-10-21"

// firstMaxCompletionTokensVersion is the first Azure API version accepting
// max_completion_tokens. Older versions only know max_tokens.
const firstMaxCompletionTokensVersion = "2024-09-01"

// ChatRequestCallbackFunc observes a request before it is sent.
type ChatRequestCallbackFunc func(ctx context.Context, req *openai.ChatCompletionNewParams)

// ChatResponseCallbackFunc observes a successful completion.
type ChatResponseCallbackFunc func(ctx context.Context, req *openai.ChatCompletionNewParams, rsp *openai.ChatCompletion)

type options struct {
	apiKey          string
	baseURL         string
	azureEndpoint   string
	azureAPIVersion string
	timeout         time.Duration
	// legacyMaxTokens is nil until set by WithLegacyMaxTokens.
	legacyMaxTokens *bool
	// maxRetries < 0 keeps the client default.
	maxRetries       int
	onRequest        ChatRequestCallbackFunc
	onResponse       ChatResponseCallbackFunc
	extraRequestOpts []openaiopt.RequestOption
}

func defaultOptions() options {
	return options{azureAPIVersion: defaultAzureAPIVersion, maxRetries: -1}
}

// Option configures a Model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithAzure routes requests to an Azure OpenAI deployment named after the
// model. An empty apiVersion keeps the default. The base URL is ignored.
func WithAzure(endpoint, apiVersion string) Option {
	return func(o *options) {
		o.azureEndpoint = endpoint
		if apiVersion != "" {
			o.azureAPIVersion = apiVersion
		}
	}
}

// WithTimeout bounds every HTTP request, including reading the body.
// Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxRetries sets how often the client retries rate limited and 5xx
// responses. Negative values keep the client default.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithLegacyMaxTokens sends the token limit as max_tokens instead of
// max_completion_tokens. Without it, max_tokens is used only for Azure API
// versions older than 2024-09-01.
func WithLegacyMaxTokens(legacy bool) Option {
	return func(o *options) { o.legacyMaxTokens = &legacy }
}

// WithChatRequestCallback registers fn to run before each request.
func WithChatRequestCallback(fn ChatRequestCallbackFunc) Option {
	return func(o *options) { o.onRequest = fn }
}

// WithChatResponseCallback registers fn to run after each successful
// completion, e.g. to count token usage.
func WithChatResponseCallback(fn ChatResponseCallbackFunc) Option {
	return func(o *options) { o.onResponse = fn }
}

// WithOpenAIOptions appends raw openai-go request options, such as
// middleware.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.extraRequestOpts = append(o.extraRequestOpts, opts...) }
}

func (o *options) useLegacyMaxTokens() bool {
	if o.legacyMaxTokens != nil {
		return *o.legacyMaxTokens
	}
	// API versions are dates, optionally suffixed with -preview.
	return o.azureEndpoint != "" && o.azureAPIVersion < firstMaxCompletionTokensVersion
}

func (o *options) requestOptions() []openaiopt.RequestOption {
	var out []openaiopt.RequestOption
	switch {
	case o.azureEndpoint != "":
		out = append(out, azure.WithEndpoint(o.azureEndpoint, o.azureAPIVersion))
		if o.apiKey != "" {
			out = append(out, azure.WithAPIKey(o.apiKey))
		}
	default:
		if o.apiKey != "" {
			out = append(out, openaiopt.WithAPIKey(o.apiKey))
		}
		if o.baseURL != "" {
			out = append(out, openaiopt.WithBaseURL(o.baseURL))
		}
	}
	out = append(out, openaiopt.WithHTTPClient(&http.Client{Timeout: o.timeout}))
	if o.maxRetries >= 0 {
		out = append(out, openaiopt.WithMaxRetries(o.maxRetries))
	}
	return append(out, o.extraRequestOpts...)
}

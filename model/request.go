//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package model

// GenerationConfig holds sampling parameters. Nil fields keep the backend
// default.
type GenerationConfig struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// StructuredOutputType selects how the backend constrains its output.
type StructuredOutputType string

// Structured output modes.
const (
	StructuredOutputJSONSchema StructuredOutputType = "json_schema"
	StructuredOutputJSONObject StructuredOutputType = "json_object"
)

// StructuredOutput asks the backend for JSON output. JSONSchema is required
// for StructuredOutputJSONSchema.
type StructuredOutput struct {
	Type       StructuredOutputType `json:"type"`
	JSONSchema *JSONSchemaConfig    `json:"json_schema,omitempty"`
}

// JSONSchemaConfig is a named JSON schema. Name must match [a-zA-Z0-9_-]+.
type JSONSchemaConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict,omitempty"`
}

// Request is one prompt sent to a Model.
type Request struct {
	Messages         []Message `json:"messages"`
	GenerationConfig `json:",inline"`
	StructuredOutput *StructuredOutput `json:"structured_output,omitempty"`
}

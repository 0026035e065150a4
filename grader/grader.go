//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package grader judges generated answers against gold answers.
package grader

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/model"
)

// Labels the grader may emit.
const (
	LabelCorrect = "CORRECT"
	LabelWrong   = "WRONG"
)

// DefaultMaxTokens bounds the grader output.
const DefaultMaxTokens = 4095

var (
	// ErrGradingAmbiguity is returned when the label names both verdicts or neither.
	ErrGradingAmbiguity = errors.New("grading ambiguity")
	// ErrBackend is returned when the model call itself failed.
	ErrBackend = errors.New("grader backend error")
)

var labelToken = regexp.MustCompile(`\b(correct|wrong)\b`)

// negatedLabel matches a label token preceded by a negation within three
// words, as in "is not correct" or "isn't entirely wrong".
var negatedLabel = regexp.MustCompile(`\b(?:not|no|never|\w+n['’]t)\b(?:\W+\w+){0,2}?\W+(?:correct|wrong)\b`)

// Result is one verdict.
type Result struct {
	Correct     bool   `json:"correct"`
	Label       string `json:"label"`
	Explanation string `json:"explanation,omitempty"`
}

// Grader asks a chat model for a CORRECT/WRONG verdict.
type Grader struct {
	model     model.Model
	maxTokens int
}

// Option configures a Grader.
type Option func(*Grader)

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(g *Grader) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// New creates a Grader backed by m.
func New(m model.Model, opts ...Option) *Grader {
	g := &Grader{model: m, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildRequest returns the structured-output request for one verdict.
func (g *Grader) BuildRequest(question, gold, generated string) *model.Request {
	return &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage(systemPrompt),
			model.NewUserMessage(fmt.Sprintf(accuracyPromptFormat, question, gold, generated)),
		},
		GenerationConfig: model.GenerationConfig{
			MaxTokens:   model.IntPtr(g.maxTokens),
			Temperature: model.Float64Ptr(0),
		},
		StructuredOutput: &model.StructuredOutput{
			Type: model.StructuredOutputJSONSchema,
			JSONSchema: &model.JSONSchemaConfig{
				Name:        schemaName,
				Schema:      gradeSchema,
				Strict:      true,
				Description: schemaDescription,
			},
		},
	}
}

// Grade judges generated against gold. An empty generated answer is graded
// like any other.
func (g *Grader) Grade(ctx context.Context, question, gold, generated string) (*Result, error) {
	ch, err := g.model.GenerateContent(ctx, g.BuildRequest(question, gold, generated))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	var (
		content string
		rspErr  error
	)
	for rsp := range ch {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			rspErr = rsp.Error
			continue
		}
		if c := rsp.Content(); c != "" && content == "" {
			content = c
		}
	}
	if content == "" {
		if rspErr == nil {
			rspErr = errors.New("empty output")
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, rspErr)
	}
	return ParseOutput(content)
}

// ParseOutput reads the structured verdict. JSON output is read from
// "is_correct" or "label"; anything else is scanned as plain text.
func ParseOutput(content string) (*Result, error) {
	doc, ok := jsonObject(content)
	if ok {
		label := doc.Get("is_correct")
		if !label.Exists() {
			label = doc.Get("label")
		}
		if label.Exists() {
			correct, err := ParseLabel(label.String())
			if err != nil {
				return nil, err
			}
			return &Result{
				Correct:     correct,
				Label:       canonical(correct),
				Explanation: doc.Get("explanation").String(),
			}, nil
		}
	}
	correct, err := ParseLabel(content)
	if err != nil {
		return nil, err
	}
	return &Result{Correct: correct, Label: canonical(correct), Explanation: content}, nil
}

// ParseLabel normalizes a label. Surrounding whitespace and punctuation are
// ignored and case is folded; "correct" is true and "wrong" is false. Any
// other text must contain exactly one of the two words, not negated.
func ParseLabel(label string) (bool, error) {
	s := strings.ToLower(strings.TrimFunc(label, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
	switch s {
	case "correct":
		return true, nil
	case "wrong":
		return false, nil
	}
	if negatedLabel.MatchString(s) {
		return false, fmt.Errorf("%w: negated label %q", ErrGradingAmbiguity, truncate(label, 120))
	}
	seen := make(map[string]bool, 2)
	for _, m := range labelToken.FindAllString(s, -1) {
		seen[m] = true
	}
	if len(seen) != 1 {
		return false, fmt.Errorf("%w: %q", ErrGradingAmbiguity, truncate(label, 120))
	}
	log.Warnf("grader: lenient label %q", truncate(label, 120))
	return seen["correct"], nil
}

// jsonObject returns the JSON object in content, also when it is wrapped in
// prose or a code fence.
func jsonObject(content string) (gjson.Result, bool) {
	s := strings.TrimSpace(content)
	if gjson.Valid(s) {
		if r := gjson.Parse(s); r.IsObject() {
			return r, true
		}
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return gjson.Result{}, false
	}
	return gjson.Parse(s), true
}

func canonical(correct bool) string {
	if correct {
		return LabelCorrect
	}
	return LabelWrong
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

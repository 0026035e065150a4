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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
)

// ReportFileName is the file written by SaveReport.
const ReportFileName = "results.json"

// CategoryStats summarizes the outcomes of one category. Accuracy is
// Correct / (Correct + Wrong); failed queries are excluded.
type CategoryStats struct {
	Category dataset.Category `json:"category"`
	Name     string           `json:"name"`
	Count    int              `json:"count"`
	Correct  int              `json:"correct"`
	Wrong    int              `json:"wrong"`
	Failed   int              `json:"failed"`
	Accuracy float64          `json:"accuracy"`
}

func (s *CategoryStats) add(o Outcome) {
	s.Count++
	switch o {
	case OutcomeCorrect:
		s.Correct++
	case OutcomeWrong:
		s.Wrong++
	case OutcomeFailed:
		s.Failed++
	}
}

func (s *CategoryStats) finish() {
	if graded := s.Correct + s.Wrong; graded > 0 {
		s.Accuracy = float64(s.Correct) / float64(graded)
	}
}

// Stats returns per-category statistics in category order and the overall
// statistics.
func (r CategoryResult) Stats() ([]CategoryStats, CategoryStats) {
	overall := CategoryStats{Name: "overall"}
	stats := make([]CategoryStats, 0, len(dataset.ScoredCategories))
	for _, c := range dataset.ScoredCategories {
		s := CategoryStats{Category: c, Name: c.Name()}
		for _, o := range r[c] {
			s.add(o)
			overall.add(o)
		}
		s.finish()
		stats = append(stats, s)
	}
	overall.finish()
	return stats, overall
}

// Report is the result of one run. It is built once when the run ends.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Queries    int             `json:"queries"`
	Evaluated  int             `json:"evaluated"`
	Omitted    int             `json:"omitted"`
	Skipped    int             `json:"skipped"`
	Categories []CategoryStats `json:"categories"`
	Overall    CategoryStats   `json:"overall"`
	Results    CategoryResult  `json:"results"`
	Failures   []*QueryFailure `json:"failures"`
	Tokens     *TokenUsage     `json:"tokens,omitempty"`
	Answers    []*QueryResult  `json:"answers,omitempty"`
}

// Bools returns category -> outcomes as booleans, leaving out failures.
func (r *Report) Bools() map[dataset.Category][]bool {
	return r.Results.Bools()
}

func (e *Evaluator) buildReport(runID string, started time.Time, queries []*dataset.QueryRecord, collected []*unitResult) *Report {
	r := &Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Queries:    len(queries),
		Results:    make(CategoryResult, len(dataset.ScoredCategories)),
		Failures:   []*QueryFailure{},
	}
	for _, c := range dataset.ScoredCategories {
		r.Results[c] = []Outcome{}
	}
	for i, q := range queries {
		if q == nil || !q.Category.Scored() {
			r.Skipped++
			continue
		}
		u := collected[i]
		if u == nil || u.omitted {
			r.Omitted++
			continue
		}
		r.Results[q.Category] = append(r.Results[q.Category], u.outcome)
		if u.failure != nil {
			r.Failures = append(r.Failures, u.failure)
		}
		if u.detail != nil {
			r.Answers = append(r.Answers, u.detail)
		}
	}
	r.Categories, r.Overall = r.Results.Stats()
	r.Evaluated = r.Overall.Count
	if e.opts.tokens != nil {
		usage := e.opts.tokens.Usage()
		r.Tokens = &usage
	}
	return r
}

// MarshalReport encodes r as indented JSON.
func MarshalReport(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errors.New("report is nil")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveReport writes r to dir/results.json and returns the path.
func SaveReport(dir string, r *Report) (string, error) {
	data, err := MarshalReport(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, ReportFileName)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return p, nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(p string) (*Report, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", p, err)
	}
	return &r, nil
}

// PrintSummary writes a human readable table of r.
func PrintSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "run %s (%s)\n", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Name", "Count", "Correct", "Wrong", "Failed", "Accuracy"})
	table.SetAutoFormatHeaders(false)
	for _, s := range r.Categories {
		table.Append(statsRow(strconv.Itoa(int(s.Category)), s))
	}
	table.SetFooter(statsRow("all", r.Overall))
	table.Render()
	fmt.Fprintf(w, "failed %d, omitted %d, skipped %d\n", r.Overall.Failed, r.Omitted, r.Skipped)
	if r.Tokens != nil {
		fmt.Fprintf(w, "tokens: %d prompt, %d completion, %d calls\n",
			r.Tokens.PromptTokens, r.Tokens.CompletionTokens, r.Tokens.Calls)
	}
}

func statsRow(label string, s CategoryStats) []string {
	return []string{
		label,
		s.Name,
		strconv.Itoa(s.Count),
		strconv.Itoa(s.Correct),
		strconv.Itoa(s.Wrong),
		strconv.Itoa(s.Failed),
		strconv.FormatFloat(s.Accuracy, 'f', 4, 64),
	}
}

// Uploader stores a report object and returns its location.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
}

// UploadReport stores r under <prefix>/<run id>/results.json.
func UploadReport(ctx context.Context, u Uploader, prefix string, r *Report) (string, error) {
	data, err := MarshalReport(r)
	if err != nil {
		return "", err
	}
	key := path.Join(prefix, r.RunID, ReportFileName)
	loc, err := u.Upload(ctx, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	return loc, nil
}

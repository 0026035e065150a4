//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package dataset

import (
	"fmt"
	"slices"
)

// ExtractQueries builds the graded query set. Indexes are 1-based and run
// across all records; adversarial questions are skipped before numbering.
// Entries with a category outside 1..5 are reported and skipped.
func ExtractQueries(records []*ConversationRecord) ([]*QueryRecord, []error) {
	var (
		queries []*QueryRecord
		errs    []error
	)
	for _, rec := range records {
		for i, qa := range rec.QA {
			category, err := ParseCategory(qa.Category)
			if err != nil {
				errs = append(errs, &FormatError{
					Record: rec.Position,
					Field:  fmt.Sprintf("qa[%d].category", i),
					Reason: "unknown category",
					Err:    err,
				})
				continue
			}
			if !category.Scored() {
				continue
			}
			queries = append(queries, &QueryRecord{
				Index:        len(queries) + 1,
				Query:        qa.Question,
				Answer:       qa.Answer,
				Category:     category,
				Participants: rec.Participants(),
				SampleID:     rec.SampleID,
			})
		}
	}
	return queries, errs
}

// QueryFilter narrows a query set. Zero values disable a criterion.
type QueryFilter struct {
	SampleID   string
	Categories []Category
	// Max keeps at most this many queries after the other filters.
	Max int
}

// FilterQueries returns the queries matching f, keeping their indexes.
func FilterQueries(queries []*QueryRecord, f QueryFilter) []*QueryRecord {
	out := make([]*QueryRecord, 0, len(queries))
	for _, q := range queries {
		if f.SampleID != "" && q.SampleID != f.SampleID {
			continue
		}
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, q.Category) {
			continue
		}
		out = append(out, q)
		if f.Max > 0 && len(out) == f.Max {
			break
		}
	}
	return out
}

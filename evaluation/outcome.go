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
	"trpc.group/trpc-go/trpc-memory-eval/dataset"
)

// Outcome is the result of one query.
type Outcome string

const (
	// OutcomeCorrect means the grader accepted the answer.
	OutcomeCorrect Outcome = "correct"
	// OutcomeWrong means the grader rejected the answer.
	OutcomeWrong Outcome = "wrong"
	// OutcomeFailed marks a query that could not be graded. It is counted
	// but excluded from accuracy.
	OutcomeFailed Outcome = "failed"
)

// Stage names the step a query failed in.
type Stage string

const (
	StageRetrieve Stage = "retrieve"
	StageProfile  Stage = "profile"
	StageAnswer   Stage = "answer"
	StageGrade    Stage = "grade"
)

// QueryFailure describes one failed query.
type QueryFailure struct {
	Index    int              `json:"query_index"`
	Category dataset.Category `json:"category"`
	Stage    Stage            `json:"stage"`
	Error    string           `json:"error"`
}

// QueryResult is the per-query detail kept with WithKeepAnswers.
type QueryResult struct {
	Index       int              `json:"query_index"`
	Category    dataset.Category `json:"category"`
	Query       string           `json:"query"`
	Gold        string           `json:"gold_answer"`
	Generated   string           `json:"generated_answer"`
	Memories    []string         `json:"memories,omitempty"`
	Outcome     Outcome          `json:"outcome"`
	Explanation string           `json:"explanation,omitempty"`
}

// CategoryResult maps each scored category to its outcomes in query order.
type CategoryResult map[dataset.Category][]Outcome

// Bools returns the boolean view: true for correct, false for wrong.
// Failed queries are left out.
func (r CategoryResult) Bools() map[dataset.Category][]bool {
	out := make(map[dataset.Category][]bool, len(dataset.ScoredCategories))
	for _, c := range dataset.ScoredCategories {
		list := make([]bool, 0, len(r[c]))
		for _, o := range r[c] {
			switch o {
			case OutcomeCorrect:
				list = append(list, true)
			case OutcomeWrong:
				list = append(list, false)
			}
		}
		out[c] = list
	}
	return out
}

// unitResult is what a worker hands to the coordinator.
type unitResult struct {
	pos     int
	omitted bool
	outcome Outcome
	failure *QueryFailure
	detail  *QueryResult
}

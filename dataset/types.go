//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package dataset turns LoCoMo-style conversation dumps into memory batches
// and graded query records.
//
// The pipeline is:
//   - ParseDataset: raw JSON to ConversationRecord values.
//   - Normalizer: sessions to time-anchored MemoryBatch values.
//   - ExtractQueries: qa entries to QueryRecord values, category 5 excluded.
//
// Record-level problems never abort a run. They are returned as error slices
// next to the results so the caller can log and report them.
package dataset

import (
	"fmt"
)

// DefaultBatchSize is the maximum number of records in one MemoryBatch.
const DefaultBatchSize = 50

// DialogueTurn is one utterance inside a session.
type DialogueTurn struct {
	Speaker string
	Text    string
	// ImageCaption is nil when the turn carried no image.
	ImageCaption *string
}

// Session is one timestamped block of dialogue.
type Session struct {
	// Key is the conversation key, e.g. "session_3".
	Key string
	// Number is the numeric suffix of Key.
	Number int
	// DateTime is the raw session_<n>_date_time value.
	DateTime string
	// Turns holds the turns that had both a speaker and a text.
	Turns []DialogueTurn
	// DroppedTurns counts turns skipped for a missing speaker or text.
	DroppedTurns int
}

// QAEntry is one raw question/answer pair.
type QAEntry struct {
	Question string
	// Answer is the gold answer. Non-string answers keep their JSON text.
	Answer string
	// Category is the raw category value, numeric or string.
	Category string
}

// ConversationRecord is the parsed, read-only view of one dataset element.
type ConversationRecord struct {
	// Position is the 0-based index in the top-level dataset array.
	Position int
	SampleID string
	SpeakerA string
	SpeakerB string
	Sessions []Session
	QA       []QAEntry
}

// Participants returns the two speakers in dataset order.
func (r *ConversationRecord) Participants() []string {
	return []string{r.SpeakerA, r.SpeakerB}
}

// MemoryRecord is the normalized, ingest-ready unit.
type MemoryRecord struct {
	Role     string `json:"role"`
	RoleName string `json:"role_name"`
	Content  string `json:"content"`
	// Time is epoch milliseconds of the owning session.
	Time int64 `json:"time"`
}

// MemoryBatch is up to DefaultBatchSize records of one session sharing one
// time, in source order.
type MemoryBatch struct {
	BuildIndex int
	Messages   []MemoryRecord
}

// SessionID returns the identifier the batch is ingested under.
func (b *MemoryBatch) SessionID() string {
	return fmt.Sprintf("session_%d", b.BuildIndex)
}

// Time returns the shared time of the batch, or 0 when empty.
func (b *MemoryBatch) Time() int64 {
	if len(b.Messages) == 0 {
		return 0
	}
	return b.Messages[0].Time
}

// QueryRecord is one graded question.
type QueryRecord struct {
	// Index is 1-based across the whole dataset, assigned after filtering.
	Index    int
	Query    string
	Answer   string
	Category Category
	// Participants holds the two conversation speakers used as search filter.
	Participants []string
	// SampleID is the conversation the question came from. It is not part of
	// the query CSV and is empty after ReadQueries.
	SampleID string
}

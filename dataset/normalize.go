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

	"trpc.group/trpc-go/trpc-memory-eval/log"
)

const (
	roleUser           = "user"
	imageCaptionFormat = "(description of attached image: %s)"
)

// Normalizer turns conversation sessions into memory batches.
type Normalizer struct {
	batchSize int
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func WithBatchSize(n int) NormalizerOption {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.batchSize = n
		}
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	nz := &Normalizer{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(nz)
	}
	return nz
}

// NormalizeResult is the outcome of one normalization run.
type NormalizeResult struct {
	// Batches are ordered by BuildIndex, which starts at 0 and has no gaps.
	Batches []*MemoryBatch
	// Errors lists sessions skipped for an unreadable date-time.
	Errors []error
	// DroppedTurns counts turns without a speaker or text.
	DroppedTurns int
}

// Normalize chunks every session of every record. The build index is global
// to the call, so batches from different conversations never collide.
func (n *Normalizer) Normalize(records []*ConversationRecord) *NormalizeResult {
	res := &NormalizeResult{}
	for _, rec := range records {
		for _, sess := range rec.Sessions {
			res.DroppedTurns += sess.DroppedTurns
			ms, err := ParseSessionTime(sess.DateTime)
			if err != nil {
				terr := &TimestampError{Record: rec.Position, Session: sess.Key, Value: sess.DateTime, Err: err}
				log.Warnf("dataset: skip session: %v", terr)
				res.Errors = append(res.Errors, terr)
				continue
			}
			memories := make([]MemoryRecord, 0, len(sess.Turns))
			for _, turn := range sess.Turns {
				memories = append(memories, toMemoryRecord(turn, ms))
			}
			for start := 0; start < len(memories); start += n.batchSize {
				end := min(start+n.batchSize, len(memories))
				res.Batches = append(res.Batches, &MemoryBatch{
					BuildIndex: len(res.Batches),
					Messages:   memories[start:end:end],
				})
			}
		}
	}
	return res
}

func toMemoryRecord(turn DialogueTurn, ms int64) MemoryRecord {
	rec := MemoryRecord{Content: turn.Text, Time: ms}
	if turn.Speaker != "" {
		rec.Role = roleUser
		rec.RoleName = turn.Speaker
	}
	if turn.ImageCaption != nil {
		rec.Content += fmt.Sprintf(imageCaptionFormat, *turn.ImageCaption)
	}
	return rec
}

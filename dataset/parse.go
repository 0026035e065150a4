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
	"os"
	"regexp"
	"strconv"

	"github.com/tidwall/gjson"
)

var sessionKeyPattern = regexp.MustCompile(`^session_(\d+)$`)

// ParseResult is the outcome of ParseDataset.
type ParseResult struct {
	// Records holds the usable conversations in dataset order.
	Records []*ConversationRecord
	// Errors lists skipped records, sessions and qa entries.
	Errors []error
}

// LoadFile reads and parses a dataset file.
func LoadFile(path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// ParseDataset parses a dataset document. Only a document that is not a JSON
// array fails as a whole; anything below the top level is skipped and
// reported in ParseResult.Errors.
func ParseDataset(data []byte) (*ParseResult, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: document is not valid JSON", ErrDatasetFormat)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: top level is not an array", ErrDatasetFormat)
	}
	res := &ParseResult{}
	pos := 0
	root.ForEach(func(_, item gjson.Result) bool {
		rec, errs := parseRecord(pos, item)
		if rec != nil {
			res.Records = append(res.Records, rec)
		}
		res.Errors = append(res.Errors, errs...)
		pos++
		return true
	})
	return res, nil
}

func parseRecord(pos int, item gjson.Result) (*ConversationRecord, []error) {
	if !item.IsObject() {
		return nil, []error{&FormatError{Record: pos, Field: "$", Reason: "record is not an object"}}
	}
	conv := item.Get("conversation")
	if !conv.Exists() {
		return nil, []error{&FormatError{Record: pos, Field: "conversation", Reason: "missing"}}
	}
	if !conv.IsObject() {
		return nil, []error{&FormatError{Record: pos, Field: "conversation", Reason: "not an object"}}
	}

	rec := &ConversationRecord{
		Position: pos,
		SampleID: item.Get("sample_id").String(),
		SpeakerA: speaker(conv, item, "speaker_a"),
		SpeakerB: speaker(conv, item, "speaker_b"),
	}
	var errs []error

	// Keys are visited twice: once to index them, once in source order.
	type entry struct {
		key   string
		value gjson.Result
	}
	var entries []entry
	byKey := make(map[string]gjson.Result)
	conv.ForEach(func(k, v gjson.Result) bool {
		entries = append(entries, entry{key: k.String(), value: v})
		byKey[k.String()] = v
		return true
	})
	for _, e := range entries {
		m := sessionKeyPattern.FindStringSubmatch(e.key)
		if m == nil {
			continue
		}
		dt, ok := byKey[e.key+"_date_time"]
		if !ok {
			continue
		}
		if !e.value.IsArray() {
			errs = append(errs, &FormatError{
				Record: pos,
				Field:  "conversation." + e.key,
				Reason: "session is not an array",
			})
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rec.Sessions = append(rec.Sessions, parseSession(e.key, num, dt.String(), e.value))
	}

	qa := item.Get("qa")
	switch {
	case !qa.Exists():
	case !qa.IsArray():
		errs = append(errs, &FormatError{Record: pos, Field: "qa", Reason: "not an array"})
	default:
		i := 0
		qa.ForEach(func(_, v gjson.Result) bool {
			if !v.IsObject() {
				errs = append(errs, &FormatError{
					Record: pos,
					Field:  fmt.Sprintf("qa[%d]", i),
					Reason: "entry is not an object",
				})
			} else {
				rec.QA = append(rec.QA, QAEntry{
					Question: v.Get("question").String(),
					Answer:   scalarText(v.Get("answer")),
					Category: scalarText(v.Get("category")),
				})
			}
			i++
			return true
		})
	}
	return rec, errs
}

func parseSession(key string, num int, dateTime string, turns gjson.Result) Session {
	s := Session{Key: key, Number: num, DateTime: dateTime}
	turns.ForEach(func(_, t gjson.Result) bool {
		sp, tx := t.Get("speaker"), t.Get("text")
		if !t.IsObject() || !present(sp) || !present(tx) {
			s.DroppedTurns++
			return true
		}
		turn := DialogueTurn{Speaker: sp.String(), Text: tx.String()}
		if c := t.Get("blip_caption"); present(c) {
			caption := c.String()
			turn.ImageCaption = &caption
		}
		s.Turns = append(s.Turns, turn)
		return true
	})
	return s
}

// speaker prefers the conversation-level name and falls back to the record.
func speaker(conv, item gjson.Result, key string) string {
	if v := conv.Get(key); present(v) {
		return v.String()
	}
	return item.Get(key).String()
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// scalarText keeps strings as-is and other JSON values as their raw text.
func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

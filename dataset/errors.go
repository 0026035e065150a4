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
	"errors"
	"fmt"
)

var (
	// ErrDatasetFormat marks a malformed record, session or qa entry.
	ErrDatasetFormat = errors.New("dataset format error")
	// ErrTimestampParse marks a session date-time that does not match the layout.
	ErrTimestampParse = errors.New("timestamp parse error")
	// ErrUnknownCategory marks a qa category outside 1..5.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrEmptyDatasetURL is returned when the URL file has no usable first line.
	ErrEmptyDatasetURL = errors.New("empty dataset url")
	// ErrInvalidDatasetURL is returned for URLs that are not http(s).
	ErrInvalidDatasetURL = errors.New("invalid dataset url")
)

// FormatError describes a skipped element of the dataset.
type FormatError struct {
	// Record is the 0-based position in the top-level array, -1 if unknown.
	Record int
	// Field locates the problem inside the record, e.g. "conversation.session_2".
	Field string
	// Reason is a short description.
	Reason string
	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := fmt.Sprintf("record %d: %s: %s", e.Record, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrDatasetFormat so callers can use errors.Is.
func (e *FormatError) Is(target error) bool {
	return target == ErrDatasetFormat
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// TimestampError describes a session whose date-time could not be resolved.
type TimestampError struct {
	Record  int
	Session string
	Value   string
	Err     error
}

// Error implements the error interface.
func (e *TimestampError) Error() string {
	return fmt.Sprintf("record %d: %s: cannot parse %q: %v", e.Record, e.Session, e.Value, e.Err)
}

// Is reports ErrTimestampParse so callers can use errors.Is.
func (e *TimestampError) Is(target error) bool {
	return target == ErrTimestampParse
}

// Unwrap returns the underlying time.Parse error.
func (e *TimestampError) Unwrap() error {
	return e.Err
}

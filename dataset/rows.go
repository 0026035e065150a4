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
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	batchHeader = []string{"messages", "build_index"}
	queryHeader = []string{"query_index", "query", "answer", "category", "query_user"}
)

// WriteBatches writes the intermediate ingestion file.
func WriteBatches(w io.Writer, batches []*MemoryBatch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(batchHeader); err != nil {
		return err
	}
	for _, b := range batches {
		msgs, err := marshalRecords(b.Messages)
		if err != nil {
			return fmt.Errorf("encode batch %d: %w", b.BuildIndex, err)
		}
		if err := cw.Write([]string{msgs, strconv.Itoa(b.BuildIndex)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBatches reads a file produced by WriteBatches.
func ReadBatches(r io.Reader) ([]*MemoryBatch, error) {
	rows, err := readRows(r, batchHeader)
	if err != nil {
		return nil, err
	}
	batches := make([]*MemoryBatch, 0, len(rows))
	for i, row := range rows {
		idx, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: build_index: %w", i+2, err)
		}
		var msgs []MemoryRecord
		if err := json.Unmarshal([]byte(row[0]), &msgs); err != nil {
			return nil, fmt.Errorf("row %d: messages: %w", i+2, err)
		}
		batches = append(batches, &MemoryBatch{BuildIndex: idx, Messages: msgs})
	}
	return batches, nil
}

// WriteQueries writes the intermediate query file.
func WriteQueries(w io.Writer, queries []*QueryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(queryHeader); err != nil {
		return err
	}
	for _, q := range queries {
		row := []string{
			strconv.Itoa(q.Index),
			q.Query,
			q.Answer,
			q.Category.String(),
			strings.Join(q.Participants, ","),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadQueries reads a file produced by WriteQueries.
func ReadQueries(r io.Reader) ([]*QueryRecord, error) {
	rows, err := readRows(r, queryHeader)
	if err != nil {
		return nil, err
	}
	queries := make([]*QueryRecord, 0, len(rows))
	for i, row := range rows {
		idx, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: query_index: %w", i+2, err)
		}
		category, err := ParseCategory(row[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		queries = append(queries, &QueryRecord{
			Index:        idx,
			Query:        row[1],
			Answer:       row[2],
			Category:     category,
			Participants: strings.Split(row[4], ","),
		})
	}
	return queries, nil
}

func readRows(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	got, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrDatasetFormat)
	}
	if err != nil {
		return nil, err
	}
	if !slices.Equal(got, header) {
		return nil, fmt.Errorf("%w: header %v, want %v", ErrDatasetFormat, got, header)
	}
	return cr.ReadAll()
}

// marshalRecords encodes without HTML escaping so non-ASCII and markup
// survive unchanged.
func marshalRecords(msgs []MemoryRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msgs); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

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
	"strconv"
	"strings"
)

// Category classifies the reasoning a question requires.
type Category int

// Benchmark categories. Only 1..4 are scored.
const (
	CategoryMultiHop    Category = 1
	CategoryTemporal    Category = 2
	CategoryOpenDomain  Category = 3
	CategorySingleHop   Category = 4
	CategoryAdversarial Category = 5
)

// ScoredCategories lists the categories that appear in a report, in order.
var ScoredCategories = []Category{
	CategoryMultiHop,
	CategoryTemporal,
	CategoryOpenDomain,
	CategorySingleHop,
}

var categoryNames = map[Category]string{
	CategoryMultiHop:    "multi-hop",
	CategoryTemporal:    "temporal",
	CategoryOpenDomain:  "open-domain",
	CategorySingleHop:   "single-hop",
	CategoryAdversarial: "adversarial",
}

// ParseCategory accepts "1".."5" with optional surrounding whitespace.
func ParseCategory(raw string) (Category, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	c := Category(n)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}

// Valid reports whether c is one of the five benchmark categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Scored reports whether c counts towards accuracy.
func (c Category) Scored() bool {
	return c >= CategoryMultiHop && c <= CategorySingleHop
}

// Name returns the human readable category name.
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// String returns the numeric form used in CSV files and reports.
func (c Category) String() string {
	return strconv.Itoa(int(c))
}

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
	"regexp"
	"strings"
	"time"
)

// sessionTimeLayout is "%I:%M %p on %d %B, %Y".
const sessionTimeLayout = "3:04 PM on 2 January, 2006"

// SessionZone is the fixed offset every session date-time is read in.
var SessionZone = time.FixedZone("UTC+8", 8*60*60)

var meridiem = regexp.MustCompile(`(?i)\b(am|pm)\b`)

// ParseSessionTime converts a session date-time such as
// "1:56 pm on 8 May, 2023" to epoch milliseconds.
func ParseSessionTime(value string) (int64, error) {
	s := meridiem.ReplaceAllStringFunc(strings.TrimSpace(value), strings.ToUpper)
	// time.Parse accepts hour 0 on a 12-hour clock; strptime does not.
	if strings.HasPrefix(s, "0:") || strings.HasPrefix(s, "00:") {
		return 0, fmt.Errorf("hour out of range in %q", value)
	}
	t, err := time.ParseInLocation(sessionTimeLayout, s, SessionZone)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

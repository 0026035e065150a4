//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package viking

import (
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

// BackendError is a failed call to the memory service.
type BackendError struct {
	// Op is the API path, e.g. "/api/memory/search".
	Op string
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	// Code and Message come from the response envelope when present.
	Code    int
	Message string
	// Err is the transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("viking %s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("viking %s: status %d, code %d: %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("viking %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

// Is reports memorystore.ErrBackendTransport.
func (e *BackendError) Is(target error) bool {
	return target == memorystore.ErrBackendTransport
}

// Unwrap returns the transport error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt may succeed: no response at
// all, a 5xx or a 429.
func retryable(err error) bool {
	var be *BackendError
	if !errors.As(err, &be) {
		return false
	}
	if be.StatusCode == 0 {
		return be.Err != nil
	}
	return be.StatusCode >= 500 || be.StatusCode == 429
}

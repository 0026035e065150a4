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
	"net/http"

	"github.com/volcengine/volc-sdk-golang/base"
)

// Signer authenticates an outgoing request.
type Signer interface {
	Sign(req *http.Request) (*http.Request, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(req *http.Request) (*http.Request, error)

// Sign implements Signer.
func (f SignerFunc) Sign(req *http.Request) (*http.Request, error) { return f(req) }

// V4Signer signs requests with Volcengine HMAC-SHA256 V4 credentials.
type V4Signer struct {
	creds base.Credentials
}

// NewV4Signer creates a V4Signer.
func NewV4Signer(accessKey, secretKey, region, service string) *V4Signer {
	return &V4Signer{creds: base.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Region:          region,
		Service:         service,
	}}
}

// Sign implements Signer.
func (s *V4Signer) Sign(req *http.Request) (*http.Request, error) {
	return s.creds.Sign(req), nil
}

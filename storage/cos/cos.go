//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package cos uploads run reports to Tencent Cloud Object Storage.
//
// Credentials come from COS_SECRETID and COS_SECRETKEY unless WithSecretID
// and WithSecretKey are given.
package cos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

const (
	defaultTimeout    = 60 * time.Second
	reportContentType = "application/json; charset=utf-8"
)

// Uploader writes objects into one COS bucket.
type Uploader struct {
	cosClient *cos.Client
	prefix    string
}

// NewUploader creates an Uploader for bucketURL, e.g.
// "https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com".
func NewUploader(bucketURL string, opts ...Option) (*Uploader, error) {
	options := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(options)
	}
	prefix := strings.Trim(options.prefix, "/")
	if options.cosClient != nil {
		return &Uploader{cosClient: options.cosClient, prefix: prefix}, nil
	}

	u, err := url.Parse(bucketURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cos: invalid bucket url %q", bucketURL)
	}
	var httpClient *http.Client
	if options.httpClient != nil {
		httpClient = options.httpClient
	} else {
		httpClient = &http.Client{
			Timeout: options.timeout,
			Transport: &cos.AuthorizationTransport{
				SecretID:  options.secretID,
				SecretKey: options.secretKey,
			},
		}
	}
	return &Uploader{
		cosClient: cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient),
		prefix:    prefix,
	}, nil
}

// Upload stores body under key and returns the object URL.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	name := u.objectName(key)
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: reportContentType,
		},
	}
	if _, err := u.cosClient.Object.Put(ctx, name, body, opt); err != nil {
		return "", fmt.Errorf("cos: put %s: %w", name, err)
	}
	return u.cosClient.Object.GetObjectURL(name).String(), nil
}

func (u *Uploader) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if u.prefix == "" {
		return key
	}
	return u.prefix + "/" + key
}

// Option configures an Uploader.
type Option func(*options)

type options struct {
	secretID   string
	secretKey  string
	prefix     string
	timeout    time.Duration
	httpClient *http.Client
	cosClient  *cos.Client
}

// WithSecretID sets the COS secret id.
func WithSecretID(id string) Option {
	return func(o *options) { o.secretID = id }
}

// WithSecretKey sets the COS secret key.
func WithSecretKey(key string) Option {
	return func(o *options) { o.secretKey = key }
}

// WithPathPrefix puts every object under prefix.
func WithPathPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithTimeout sets the HTTP timeout of the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client. It must sign requests itself.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClient uses a pre-configured COS client.
func WithClient(c *cos.Client) Option {
	return func(o *options) { o.cosClient = c }
}

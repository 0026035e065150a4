//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package tos uploads run reports to Volcengine TOS.
package tos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/volcengine/ve-tos-golang-sdk/v2/tos"
)

const reportContentType = "application/json; charset=utf-8"

// Config selects the bucket.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// objectPutter is the part of *tos.ClientV2 the uploader uses.
type objectPutter interface {
	PutObjectV2(ctx context.Context, input *tos.PutObjectV2Input) (*tos.PutObjectV2Output, error)
}

// Uploader writes objects into one TOS bucket.
type Uploader struct {
	client objectPutter
	bucket string
	prefix string
}

// New creates an Uploader. prefix is prepended to every key.
func New(cfg Config, prefix string) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tos: endpoint is empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("tos: bucket is empty")
	}
	client, err := tos.NewClientV2(
		cfg.Endpoint,
		tos.WithRegion(cfg.Region),
		tos.WithCredentials(tos.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey)),
	)
	if err != nil {
		return nil, fmt.Errorf("tos: initialize client: %w", err)
	}
	return newUploader(client, cfg.Bucket, prefix), nil
}

func newUploader(client objectPutter, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Upload stores body under key and returns its tos:// location.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	name := joinKey(u.prefix, key)
	_, err := u.client.PutObjectV2(ctx, &tos.PutObjectV2Input{
		PutObjectBasicInput: tos.PutObjectBasicInput{
			Bucket:      u.bucket,
			Key:         name,
			ContentType: reportContentType,
		},
		Content: body,
	})
	if err != nil {
		return "", fmt.Errorf("tos: put %s: %w", name, err)
	}
	return fmt.Sprintf("tos://%s/%s", u.bucket, name), nil
}

func joinKey(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			filtered = append(filtered, part)
		}
	}
	return strings.Join(filtered, "/")
}

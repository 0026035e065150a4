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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"trpc.group/trpc-go/trpc-memory-eval/log"
)

const (
	defaultFetchAttempts = 3
	defaultFetchDelay    = time.Second
	defaultFileName      = "dataset.json"
)

// ReadURLFile returns the trimmed first line of the URL file.
func ReadURLFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var line string
	if sc.Scan() {
		line = strings.TrimSpace(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read url file: %w", err)
	}
	if line == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDatasetURL, p)
	}
	return line, nil
}

// ResolveURL validates raw and rewrites GitHub blob links to their raw
// content host.
func ResolveURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyDatasetURL
	}
	if strings.Contains(s, "github.com") && strings.Contains(s, "/blob/") {
		s = strings.ReplaceAll(s, "github.com", "raw.githubusercontent.com")
		s = strings.ReplaceAll(s, "/blob/", "/")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDatasetURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDatasetURL, raw)
	}
	return s, nil
}

// Fetcher downloads a dataset into a local directory.
type Fetcher struct {
	dir      string
	client   *http.Client
	force    bool
	attempts uint
	delay    time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithForce re-downloads even when the file already exists.
func WithForce(force bool) FetcherOption {
	return func(f *Fetcher) { f.force = force }
}

// WithRetry sets the attempt count and base delay for transient failures.
func WithRetry(attempts uint, delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		f.delay = delay
	}
}

// NewFetcher creates a Fetcher writing into dir.
func NewFetcher(dir string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		dir:      dir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		attempts: defaultFetchAttempts,
		delay:    defaultFetchDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves rawURL and stores the document under the last path segment
// of the URL. It returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := ResolveURL(rawURL)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(f.dir, fileNameFor(u))
	if !f.force {
		if _, err := os.Stat(dst); err == nil {
			log.Infof("dataset: reuse %s", dst)
			return dst, nil
		}
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	var body []byte
	err = retry.Do(
		func() error {
			b, err := f.get(ctx, u)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("dataset: download attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u, err)
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("save dataset: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("save dataset: %w", err)
	}
	log.Infof("dataset: saved %d bytes to %s", len(body), dst)
	return dst, nil
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	rsp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %s", rsp.Status)
		if rsp.StatusCode >= 400 && rsp.StatusCode < 500 && rsp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}
	b, err := io.ReadAll(rsp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return b, nil
}

func fileNameFor(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return defaultFileName
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return defaultFileName
	}
	return name
}

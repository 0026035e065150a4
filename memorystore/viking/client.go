//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package viking implements memorystore.Client over the Volcengine Viking
// memory HTTP API.
//
// Every call is a signed JSON POST answered with the envelope
//
//	{"code": 0, "message": "...", "data": {...}}
//
// Search results are read from data.result_list.
package viking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"

	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/log"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
)

// API paths.
const (
	PathCreateCollection = "/api/memory/collection/create"
	PathAddSession       = "/api/memory/session/add"
	PathSearch           = "/api/memory/search"
)

const (
	defaultScheme        = "http"
	defaultRegion        = "cn-north-1"
	defaultService       = "air"
	defaultDescription   = "temporal memory evaluation"
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxJitter     = 250 * time.Millisecond
	maxResponseBytes     = 16 << 20
)

// Fallback locations of the fields inside one result_list item.
var (
	memoryTextPaths  = []string{"memory_info.summary", "memory_info.content", "content", "text"}
	memoryTimePaths  = []string{"time", "memory_info.time", "event_time", "create_time"}
	profileTextPaths = []string{"memory_info.user_profile", "memory_info.profile", "memory_info.content", "content", "text"}
)

// Config is everything the client needs. There are no package-level
// credentials or endpoints.
type Config struct {
	// Endpoint is a host name, or a full base URL with scheme.
	Endpoint string `yaml:"endpoint"`
	// Scheme is used when Endpoint has none. Defaults to "http".
	Scheme string `yaml:"scheme"`
	// Collection is the collection batches are added to and searched in.
	Collection string `yaml:"collection"`
	// Description is sent when creating the collection.
	Description string `yaml:"description"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	// Region and Service scope the V4 signature.
	Region  string `yaml:"region"`
	Service string `yaml:"service"`
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`
	// RetryAttempts counts the first try. 1 disables retries.
	RetryAttempts uint          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

func (c *Config) applyDefaults() {
	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.Service == "" {
		c.Service = defaultService
	}
	if c.Description == "" {
		c.Description = defaultDescription
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

// HTTPDoer sends HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

// WithSigner replaces the default V4 signer.
func WithSigner(s Signer) Option {
	return func(c *Client) { c.signer = s }
}

// Client implements memorystore.Client.
type Client struct {
	cfg     Config
	baseURL string
	http    HTTPDoer
	signer  Signer
}

var _ memorystore.Client = (*Client)(nil)

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("viking: endpoint is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("viking: collection is required")
	}
	cfg.applyDefaults()

	base := strings.TrimRight(cfg.Endpoint, "/")
	if !strings.Contains(base, "://") {
		base = cfg.Scheme + "://" + base
	}
	c := &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.AccessKey != "" {
		c.signer = NewV4Signer(cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Service)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signer == nil {
		log.Warnf("viking: no credentials configured, requests are sent unsigned")
	}
	return c, nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string { return c.cfg.Collection }

type createCollectionRequest struct {
	CollectionName     string   `json:"CollectionName"`
	Description        string   `json:"Description"`
	BuiltinEventTypes  []string `json:"BuiltinEventTypes"`
	BuiltinEntityTypes []string `json:"BuiltinEntityTypes"`
}

// CreateCollection implements memorystore.Client.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	_, err := c.call(ctx, PathCreateCollection, createCollectionRequest{
		CollectionName:     name,
		Description:        c.cfg.Description,
		BuiltinEventTypes:  memorystore.BuiltinEventTypes,
		BuiltinEntityTypes: memorystore.BuiltinEntityTypes,
	})
	var be *BackendError
	if errors.As(err, &be) && alreadyExists(be) {
		log.Infof("viking: collection %s already exists", name)
		return nil
	}
	return err
}

func alreadyExists(be *BackendError) bool {
	return be.StatusCode == http.StatusConflict ||
		strings.Contains(strings.ToLower(be.Message), "already exist")
}

type addSessionRequest struct {
	CollectionName string                 `json:"collection_name"`
	SessionID      string                 `json:"session_id"`
	Messages       []dataset.MemoryRecord `json:"messages"`
	Metadata       sessionMetadata        `json:"metadata"`
}

type sessionMetadata struct {
	DefaultUserID      string `json:"default_user_id"`
	DefaultAssistantID string `json:"default_assistant_id"`
	Time               int64  `json:"time"`
}

// AddBatch implements memorystore.Client. The default user and assistant are
// the role names of the first two records; a single-record batch uses the
// first record for both.
func (c *Client) AddBatch(ctx context.Context, batch *dataset.MemoryBatch, sessionID string) error {
	if batch == nil || len(batch.Messages) == 0 {
		return errors.New("viking: empty batch")
	}
	msgs := batch.Messages
	assistant := msgs[0].RoleName
	if len(msgs) > 1 {
		assistant = msgs[1].RoleName
	}
	_, err := c.call(ctx, PathAddSession, addSessionRequest{
		CollectionName: c.cfg.Collection,
		SessionID:      sessionID,
		Messages:       msgs,
		Metadata: sessionMetadata{
			DefaultUserID:      msgs[0].RoleName,
			DefaultAssistantID: assistant,
			Time:               msgs[0].Time,
		},
	})
	return err
}

type searchRequest struct {
	CollectionName string       `json:"collection_name"`
	Query          string       `json:"query"`
	Limit          int          `json:"limit"`
	Filter         searchFilter `json:"filter"`
}

type searchFilter struct {
	UserID     []string `json:"user_id"`
	MemoryType []string `json:"memory_type"`
}

// SearchMemories implements memorystore.Client.
func (c *Client) SearchMemories(
	ctx context.Context, query string, participants []string, limit int,
) ([]memorystore.Memory, error) {
	if limit <= 0 {
		limit = memorystore.DefaultMemoryLimit
	}
	items, err := c.search(ctx, query, participants, limit, memorystore.MemoryTypeEvent)
	if err != nil {
		return nil, err
	}
	out := make([]memorystore.Memory, 0, len(items))
	for _, item := range items {
		text := firstString(item, memoryTextPaths)
		if text == "" {
			log.Debugf("viking: skip memory without text: %s", item.Raw)
			continue
		}
		out = append(out, memorystore.Memory{Time: firstTime(item, memoryTimePaths), Text: text})
	}
	return out, nil
}

// SearchProfile implements memorystore.Client.
func (c *Client) SearchProfile(
	ctx context.Context, query string, participants []string, limit int,
) ([]string, error) {
	if limit <= 0 {
		limit = memorystore.DefaultProfileLimit
	}
	items, err := c.search(ctx, query, participants, limit, memorystore.MemoryTypeProfile)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type == gjson.String {
			out = append(out, item.Str)
			continue
		}
		if text := firstString(item, profileTextPaths); text != "" {
			out = append(out, text)
			continue
		}
		out = append(out, item.Raw)
	}
	return out, nil
}

func (c *Client) search(
	ctx context.Context, query string, participants []string, limit int, memoryType string,
) ([]gjson.Result, error) {
	data, err := c.call(ctx, PathSearch, searchRequest{
		CollectionName: c.cfg.Collection,
		Query:          query,
		Limit:          limit,
		Filter: searchFilter{
			UserID:     participants,
			MemoryType: []string{memoryType},
		},
	})
	if err != nil {
		return nil, err
	}
	list := data.Get("result_list")
	switch {
	case !list.Exists():
		return nil, &BackendError{Op: PathSearch, StatusCode: http.StatusOK, Message: "response has no data.result_list"}
	case list.Type == gjson.Null:
		return nil, nil
	case !list.IsArray():
		return nil, &BackendError{Op: PathSearch, StatusCode: http.StatusOK, Message: "data.result_list is not an array"}
	}
	return list.Array(), nil
}

// call posts payload to op with retries and returns the envelope's data.
func (c *Client) call(ctx context.Context, op string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("viking %s: encode request: %w", op, err)
	}
	var data gjson.Result
	err = retry.Do(
		func() error {
			d, err := c.do(ctx, op, body)
			if err != nil {
				return err
			}
			data = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxJitter(defaultMaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("viking: %s attempt %d failed: %v", op, n+1, err)
		}),
	)
	if err != nil {
		var be *BackendError
		if !errors.As(err, &be) {
			err = &BackendError{Op: op, Err: err}
		}
		return gjson.Result{}, err
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, op string, body []byte) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+op, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, retry.Unrecoverable(&BackendError{Op: op, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		if req, err = c.signer.Sign(req); err != nil {
			return gjson.Result{}, retry.Unrecoverable(&BackendError{Op: op, Err: fmt.Errorf("sign: %w", err)})
		}
	}

	rsp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, &BackendError{Op: op, Err: err}
	}
	defer rsp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(rsp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, &BackendError{Op: op, StatusCode: rsp.StatusCode, Err: err}
	}

	env := gjson.ParseBytes(raw)
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		msg := env.Get("message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return gjson.Result{}, &BackendError{
			Op:         op,
			StatusCode: rsp.StatusCode,
			Code:       int(env.Get("code").Int()),
			Message:    msg,
		}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &BackendError{Op: op, StatusCode: rsp.StatusCode, Message: "response is not JSON"}
	}
	if code := env.Get("code").Int(); code != 0 {
		return gjson.Result{}, &BackendError{
			Op:         op,
			StatusCode: rsp.StatusCode,
			Code:       int(code),
			Message:    env.Get("message").String(),
		}
	}
	return env.Get("data"), nil
}

func firstString(item gjson.Result, paths []string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstTime reads epoch milliseconds, or an RFC3339 string.
func firstTime(item gjson.Result, paths []string) int64 {
	for _, p := range paths {
		v := item.Get(p)
		switch v.Type {
		case gjson.Number:
			return v.Int()
		case gjson.String:
			if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
				return n
			}
			if t, err := time.Parse(time.RFC3339, v.Str); err == nil {
				return t.UnixMilli()
			}
		}
	}
	return 0
}

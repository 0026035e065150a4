//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable ApplyEnv reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_VERSION",
		"MODEL_NAME", "EVAL_MODEL_NAME", "VIKING_MEMORY_ENDPOINT", "VIKING_MEMORY_COLLECTION",
		"VOLC_ACCESSKEY", "VOLC_SECRETKEY", "COS_SECRETID", "COS_SECRETKEY",
		"LOCOMO_DATASET_URL", "MEMEVAL_MYSQL_DSN", "MEMEVAL_LOG_LEVEL", "MEMEVAL_CONCURRENCY",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 50, cfg.Dataset.BatchSize)
	assert.Equal(t, 15, cfg.Evaluation.MemoryLimit)
	assert.Equal(t, 2, cfg.Evaluation.ProfileLimit)
	assert.Equal(t, 1, cfg.Evaluation.Concurrency)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "memeval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataset:
  url: https://github.com/snap-research/locomo/blob/main/data/locomo10.json
  categories: [1, 2]
memory:
  endpoint: api-knowledgebase.mlp.cn-beijing.volces.com
  collection: bench
  timeout: 10s
model:
  name: gpt-4o
  eval_name: gpt-4o-mini
evaluation:
  concurrency: 8
  qps: 2.5
report:
  tos:
    endpoint: tos-cn-beijing.volces.com
    bucket: reports
    prefix: locomo
history:
  backend: mysql
  dsn: user:pw@tcp(localhost:3306)/eval
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, cfg.Dataset.Categories)
	assert.Equal(t, "bench", cfg.Memory.Collection)
	assert.Equal(t, 10*time.Second, cfg.Memory.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.GraderName())
	assert.Equal(t, 8, cfg.Evaluation.Concurrency)
	assert.Equal(t, 2.5, cfg.Evaluation.QPS)
	assert.Equal(t, "reports", cfg.Report.TOS.Bucket)
	assert.Equal(t, "locomo", cfg.Report.TOS.Prefix)
	assert.Equal(t, HistoryMySQL, cfg.History.Backend)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Dataset.BatchSize)
	assert.Equal(t, "results", cfg.Report.Dir)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evaluation: [1"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MODEL_NAME", "answer-model")
	t.Setenv("EVAL_MODEL_NAME", "judge-model")
	t.Setenv("VOLC_ACCESSKEY", "ak")
	t.Setenv("VOLC_SECRETKEY", "sk")
	t.Setenv("COS_SECRETID", "cid")
	t.Setenv("MEMEVAL_CONCURRENCY", "6")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "answer-model", cfg.Model.Name)
	assert.Equal(t, "judge-model", cfg.Model.GraderName())
	assert.Equal(t, "ak", cfg.Memory.AccessKey)
	assert.Equal(t, "sk", cfg.Memory.SecretKey)
	assert.Equal(t, "ak", cfg.Report.TOS.AccessKey)
	assert.Equal(t, "cid", cfg.Report.COS.SecretID)
	assert.Equal(t, 6, cfg.Evaluation.Concurrency)

	t.Setenv("MEMEVAL_CONCURRENCY", "many")
	assert.ErrorContains(t, cfg.ApplyEnv(), "MEMEVAL_CONCURRENCY")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_API_KEY=from-dotenv\nMODEL_NAME=dotenv-model\n"), 0o644))
	t.Setenv("MODEL_NAME", "from-process")

	cfg, err := Load("", filepath.Join(dir, "absent.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model.APIKey)
	// Variables already set win over the file.
	assert.Equal(t, "from-process", cfg.Model.Name)
	os.Unsetenv("OPENAI_API_KEY")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Memory.Endpoint = "localhost:8080"
		cfg.Model.APIKey = "sk"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		stages []string
		fields []string
	}{
		{
			name:   "no dataset source",
			mutate: func(c *Config) { c.Dataset.URLFile = "" },
			fields: []string{"dataset"},
		},
		{
			name: "batch size over the cap",
			mutate: func(c *Config) {
				c.Dataset.BatchSize = 51
				c.Dataset.Categories = []int{5}
			},
			stages: []string{StagePrepare},
			fields: []string{"dataset.batch_size", "dataset.categories"},
		},
		{
			name:   "memory endpoint for ingest",
			mutate: func(c *Config) { c.Memory.Endpoint = ""; c.Memory.AccessKey = "ak" },
			stages: []string{StageIngest},
			fields: []string{"memory.endpoint", "memory.access_key"},
		},
		{
			name: "evaluation settings",
			mutate: func(c *Config) {
				c.Model.APIKey = ""
				c.Evaluation.Concurrency = 0
				c.Evaluation.QPS = -1
				c.Report.TOS.Bucket = "b"
			},
			stages: []string{StageEvaluate},
			fields: []string{"model.api_key", "evaluation.concurrency", "evaluation.qps", "report.tos.endpoint"},
		},
		{
			name: "model client limits",
			mutate: func(c *Config) {
				c.Model.Timeout = -time.Second
				retries := -1
				c.Model.MaxRetries = &retries
			},
			stages: []string{StageEvaluate},
			fields: []string{"model.timeout", "model.max_retries"},
		},
		{
			name:   "mysql history without dsn",
			mutate: func(c *Config) { c.History.Backend = HistoryMySQL },
			stages: []string{StagePrepare},
			fields: []string{"history.dsn"},
		},
		{
			name:   "unknown history backend",
			mutate: func(c *Config) { c.History.Backend = "redis" },
			stages: []string{StagePrepare},
			fields: []string{"history.backend"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate(tt.stages...)
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.fields, fields)
		})
	}
}

func TestValidateDeduplicates(t *testing.T) {
	cfg := Default()
	cfg.Model.APIKey = "sk"
	err := cfg.Validate(StageIngest, StageEvaluate)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "memory.endpoint", verrs[0].Field)
	assert.Contains(t, err.Error(), "found 1 configuration error(s)")
}

//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

// Package config loads the evaluator configuration from a YAML file, an
// optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-memory-eval/memorystore/viking"
	"trpc.group/trpc-go/trpc-memory-eval/storage/tos"
)

// History backends.
const (
	HistoryNone  = "none"
	HistoryLocal = "local"
	HistoryMySQL = "mysql"
)

// Config is the full evaluator configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Memory     viking.Config    `yaml:"memory"`
	Model      ModelConfig      `yaml:"model"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Report     ReportConfig     `yaml:"report"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// DatasetConfig locates the dataset and the intermediate files.
type DatasetConfig struct {
	// URL takes precedence over URLFile.
	URL     string `yaml:"url"`
	URLFile string `yaml:"url_file"`
	// Path is a local dataset file. When set nothing is downloaded.
	Path string `yaml:"path"`
	Dir  string `yaml:"dir"`
	// Force re-downloads an existing file.
	Force       bool   `yaml:"force"`
	BatchSize   int    `yaml:"batch_size"`
	BatchesFile string `yaml:"batches_file"`
	QueriesFile string `yaml:"queries_file"`

	SampleID   string `yaml:"sample_id"`
	Categories []int  `yaml:"categories"`
	MaxQueries int    `yaml:"max_queries"`
}

// ModelConfig selects the answer and grading models.
type ModelConfig struct {
	Name string `yaml:"name"`
	// EvalName is the grading model. Empty means Name.
	EvalName        string `yaml:"eval_name"`
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	AzureEndpoint   string `yaml:"azure_endpoint"`
	AzureAPIVersion string `yaml:"azure_api_version"`
	MaxTokens       int    `yaml:"max_tokens"`
	// Timeout bounds one HTTP call. Zero means none.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries overrides the client retry count when set.
	MaxRetries *int `yaml:"max_retries"`
	// LegacyMaxTokens sends max_tokens instead of max_completion_tokens.
	// Unset picks max_tokens only for Azure API versions before 2024-09-01.
	LegacyMaxTokens *bool `yaml:"legacy_max_tokens"`
}

// GraderName returns the grading model name.
func (m ModelConfig) GraderName() string {
	if m.EvalName != "" {
		return m.EvalName
	}
	return m.Name
}

// IngestConfig controls the ingestion stage.
type IngestConfig struct {
	Concurrency      int  `yaml:"concurrency"`
	CreateCollection bool `yaml:"create_collection"`
}

// EvaluationConfig controls the evaluation stage.
type EvaluationConfig struct {
	Concurrency  int     `yaml:"concurrency"`
	QPS          float64 `yaml:"qps"`
	Burst        int     `yaml:"burst"`
	MemoryLimit  int     `yaml:"memory_limit"`
	ProfileLimit int     `yaml:"profile_limit"`
	KeepAnswers  bool    `yaml:"keep_answers"`
}

// ReportConfig controls where reports go.
type ReportConfig struct {
	Dir string    `yaml:"dir"`
	COS COSConfig `yaml:"cos"`
	TOS TOSConfig `yaml:"tos"`
}

// COSConfig enables upload to Tencent COS when BucketURL is set.
type COSConfig struct {
	BucketURL string        `yaml:"bucket_url"`
	SecretID  string        `yaml:"secret_id"`
	SecretKey string        `yaml:"secret_key"`
	Prefix    string        `yaml:"prefix"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TOSConfig enables upload to Volcengine TOS when Bucket is set.
type TOSConfig struct {
	tos.Config `yaml:",inline"`
	Prefix     string `yaml:"prefix"`
}

// HistoryConfig selects the run history backend.
type HistoryConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
}

// TelemetryConfig enables OTLP export when an endpoint is set.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	// Protocol is "http" (default) or "grpc".
	Protocol        string `yaml:"protocol"`
	TracesEndpoint  string `yaml:"traces_endpoint"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			URLFile:     "locomo_url.txt",
			Dir:         "data",
			BatchSize:   50,
			BatchesFile: "data/memory_batches.csv",
			QueriesFile: "data/queries.csv",
		},
		Memory: viking.Config{
			Collection: "locomo_eval",
		},
		Model: ModelConfig{
			Name:      "gpt-4o-mini",
			MaxTokens: 4095,
		},
		Ingest: IngestConfig{
			Concurrency:      4,
			CreateCollection: true,
		},
		Evaluation: EvaluationConfig{
			Concurrency:  1,
			MemoryLimit:  15,
			ProfileLimit: 2,
		},
		Report: ReportConfig{
			Dir: "results",
		},
		History: HistoryConfig{
			Backend: HistoryLocal,
			Dir:     "results/history",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "trpc-memory-eval",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then the environment. envFiles are loaded into the
// environment first; missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files without overriding variables that
// are already set.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from well-known environment variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Model.APIKey, "OPENAI_API_KEY")
	setString(&c.Model.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Model.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Model.AzureAPIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&c.Model.Name, "MODEL_NAME")
	setString(&c.Model.EvalName, "EVAL_MODEL_NAME")

	setString(&c.Memory.Endpoint, "VIKING_MEMORY_ENDPOINT")
	setString(&c.Memory.Collection, "VIKING_MEMORY_COLLECTION")
	setString(&c.Memory.AccessKey, "VOLC_ACCESSKEY")
	setString(&c.Memory.SecretKey, "VOLC_SECRETKEY")
	setString(&c.Report.TOS.AccessKey, "VOLC_ACCESSKEY")
	setString(&c.Report.TOS.SecretKey, "VOLC_SECRETKEY")

	setString(&c.Report.COS.SecretID, "COS_SECRETID")
	setString(&c.Report.COS.SecretKey, "COS_SECRETKEY")

	setString(&c.Dataset.URL, "LOCOMO_DATASET_URL")
	setString(&c.History.DSN, "MEMEVAL_MYSQL_DSN")
	setString(&c.Log.Level, "MEMEVAL_LOG_LEVEL")

	if v, ok := os.LookupEnv("MEMEVAL_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEMEVAL_CONCURRENCY: %w", err)
		}
		c.Evaluation.Concurrency = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

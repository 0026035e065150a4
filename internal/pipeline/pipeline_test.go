//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-memory-eval/config"
	"trpc.group/trpc-go/trpc-memory-eval/dataset"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation"
	"trpc.group/trpc-go/trpc-memory-eval/evaluation/evalresult/inmemory"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore"
	"trpc.group/trpc-go/trpc-memory-eval/memorystore/memorystoretest"
	"trpc.group/trpc-go/trpc-memory-eval/model/modeltest"
)

const sampleDataset = `[
  {
    "sample_id": "conv-26",
    "conversation": {
      "speaker_a": "Caroline",
      "speaker_b": "Melanie",
      "session_1_date_time": "1:56 pm on 8 May, 2023",
      "session_1": [
        {"speaker": "Caroline", "text": "I went to the LGBTQ support group yesterday."},
        {"speaker": "Melanie", "text": "That sounds great!"},
        {"speaker": "Caroline", "text": "It was powerful."}
      ],
      "session_2_date_time": "not a date",
      "session_2": [{"speaker": "Caroline", "text": "lost"}]
    },
    "qa": [
      {"question": "When did Caroline go to the LGBTQ support group?", "answer": "7 May 2023", "category": 2},
      {"question": "Who did Caroline talk to?", "answer": "Melanie", "category": 4},
      {"question": "Adversarial?", "adversarial_answer": "x", "category": 5}
    ]
  },
  {
    "sample_id": "conv-30",
    "conversation": {
      "speaker_a": "Jon",
      "speaker_b": "Gina",
      "session_1_date_time": "10:00 AM on 01 January, 2023",
      "session_1": [{"speaker": "Jon", "text": "Happy new year"}]
    },
    "qa": [{"question": "What did Jon say?", "answer": "Happy new year", "category": 1}]
  }
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Dataset.Path = filepath.Join(dir, "locomo10.json")
	cfg.Dataset.Dir = filepath.Join(dir, "data")
	cfg.Dataset.BatchesFile = filepath.Join(dir, "data", "batches.csv")
	cfg.Dataset.QueriesFile = filepath.Join(dir, "data", "queries.csv")
	cfg.Report.Dir = filepath.Join(dir, "results")
	cfg.History.Backend = config.HistoryNone
	require.NoError(t, os.WriteFile(cfg.Dataset.Path, []byte(sampleDataset), 0o644))
	return cfg
}

func TestPrepare(t *testing.T) {
	cfg := testConfig(t)
	res, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 3, res.Queries)
	assert.Equal(t, 1, res.Errors)

	f, err := os.Open(cfg.Dataset.BatchesFile)
	require.NoError(t, err)
	defer f.Close()
	batches, err := dataset.ReadBatches(f)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Messages, 3)
	assert.Equal(t, int64(1683525360000), batches[0].Messages[0].Time)
	assert.Equal(t, 1, batches[1].BuildIndex)

	qf, err := os.Open(cfg.Dataset.QueriesFile)
	require.NoError(t, err)
	defer qf.Close()
	queries, err := dataset.ReadQueries(qf)
	require.NoError(t, err)
	require.Len(t, queries, 3)
	assert.Equal(t, []string{"Caroline", "Melanie"}, queries[0].Participants)
	assert.Equal(t, 3, queries[2].Index)
	for _, q := range queries {
		assert.NotEqual(t, dataset.CategoryAdversarial, q.Category)
	}
}

func TestPrepareFilters(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.SampleID = "conv-26"
	cfg.Dataset.Categories = []int{2}
	res, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queries)
}

func TestPrepareDownloads(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/data/locomo10.json", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, sampleDataset)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(r)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Dataset.Path = ""
	urlFile := filepath.Join(t.TempDir(), "url.txt")
	require.NoError(t, os.WriteFile(urlFile, []byte(srv.URL+"/data/locomo10.json\n"), 0o644))
	cfg.Dataset.URLFile = urlFile

	res, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Dataset.Dir, "locomo10.json"), res.DatasetPath)
	assert.Equal(t, 3, res.Queries)
}

func TestPrepareEmptyURLFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = ""
	urlFile := filepath.Join(t.TempDir(), "url.txt")
	require.NoError(t, os.WriteFile(urlFile, nil, 0o644))
	cfg.Dataset.URLFile = urlFile

	_, err := Prepare(context.Background(), cfg)
	assert.ErrorIs(t, err, dataset.ErrEmptyDatasetURL)
}

func TestIngest(t *testing.T) {
	cfg := testConfig(t)
	_, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	store := &memorystoretest.Store{
		AddErr: func(b *dataset.MemoryBatch) error {
			if b.BuildIndex == 1 {
				return errors.New("boom")
			}
			return nil
		},
	}
	res, err := Ingest(context.Background(), cfg, store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].BuildIndex)
	assert.Equal(t, []string{cfg.Memory.Collection}, store.Collections)
	assert.Contains(t, store.Added, "session_0")
}

type recordingUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (u *recordingUploader) Upload(_ context.Context, key string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[key] = data
	return "mem://" + key, nil
}

func TestEvaluate(t *testing.T) {
	cfg := testConfig(t)
	_, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	store := &memorystoretest.Store{
		Memories: []memorystore.Memory{{Time: 1683525360000, Text: "Caroline went to the LGBTQ support group on 7 May 2023."}},
	}
	judge := modeltest.New(modeltest.Text(`{"is_correct": "CORRECT", "explanation": "same day"}`))
	up := &recordingUploader{}
	history := inmemory.NewManager()
	var out bytes.Buffer

	report, err := Evaluate(context.Background(), cfg, Deps{
		Store:   store,
		Answer:  modeltest.New(modeltest.Text("7 May 2023")),
		Judge:   judge,
		Tracker: evaluation.NewTokenTracker(),
		Sinks:   []Sink{{Name: "mem", Uploader: up}},
		History: history,
		Out:     &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 3, report.Overall.Correct)
	assert.Equal(t, 1.0, report.Overall.Accuracy)
	assert.Len(t, judge.Requests(), 3)

	_, err = os.Stat(filepath.Join(cfg.Report.Dir, evaluation.ReportFileName))
	assert.NoError(t, err)
	assert.Contains(t, up.objects, report.RunID+"/"+evaluation.ReportFileName)
	saved, err := history.Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)
	assert.Contains(t, out.String(), "overall")
}

func TestEvaluateSinkFailureKeepsReport(t *testing.T) {
	cfg := testConfig(t)
	_, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	report, err := Evaluate(context.Background(), cfg, Deps{
		Store:  &memorystoretest.Store{},
		Answer: modeltest.New(modeltest.Text("unknown")),
		Judge:  modeltest.New(modeltest.Text(`{"is_correct": "WRONG", "explanation": "no"}`)),
		Sinks:  []Sink{{Name: "broken", Uploader: &recordingUploader{err: errors.New("denied")}}},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "denied")
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Overall.Wrong)
	assert.Equal(t, 0.0, report.Overall.Accuracy)
}

func TestEvaluateMissingQueries(t *testing.T) {
	cfg := testConfig(t)
	_, err := Evaluate(context.Background(), cfg, Deps{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewHistoryAndSinks(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHistory(cfg)
	require.NoError(t, err)
	assert.Nil(t, h)

	cfg.History.Backend = config.HistoryLocal
	cfg.History.Dir = t.TempDir()
	h, err = NewHistory(cfg)
	require.NoError(t, err)
	require.NotNil(t, h)

	cfg.History.Backend = "redis"
	_, err = NewHistory(cfg)
	assert.Error(t, err)

	sinks, err := NewSinks(cfg)
	require.NoError(t, err)
	assert.Empty(t, sinks)

	cfg.Report.COS.BucketURL = "https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com"
	cfg.Report.TOS.Endpoint = "https://tos-cn-beijing.volces.com"
	cfg.Report.TOS.Region = "cn-beijing"
	cfg.Report.TOS.Bucket = "reports"
	sinks, err = NewSinks(cfg)
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "cos", sinks[0].Name)
	assert.Equal(t, "tos", sinks[1].Name)
}

func TestNewModelsSharesJudge(t *testing.T) {
	cfg := config.Default()
	cfg.Model.APIKey = "sk"
	a, j := NewModels(cfg, nil)
	assert.Same(t, a, j)

	cfg.Model.EvalName = "judge"
	a, j = NewModels(cfg, evaluation.NewTokenTracker())
	assert.NotSame(t, a, j)
	assert.Equal(t, "judge", j.Info().Name)
}

func TestStartTelemetryDisabled(t *testing.T) {
	stop, err := StartTelemetry(context.Background(), config.Default())
	require.NoError(t, err)
	stop()
}

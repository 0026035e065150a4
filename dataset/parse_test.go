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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `[
  {
    "sample_id": "conv-26",
    "conversation": {
      "speaker_a": "Caroline",
      "speaker_b": "Melanie",
      "session_1_date_time": "1:56 pm on 8 May, 2023",
      "session_1": [
        {"speaker": "Caroline", "dia_id": "D1:1", "text": "Hey Mel!"},
        {"speaker": "Melanie", "dia_id": "D1:2", "text": "Look at this.", "blip_caption": "a photo of a dog"},
        {"speaker": "Melanie", "text": null},
        {"text": "no speaker"},
        "not an object"
      ],
      "session_2": [
        {"speaker": "Caroline", "text": "Back again", "blip_caption": null}
      ],
      "session_2_date_time": "10:00 AM on 01 January, 2023",
      "session_3": [{"speaker": "Caroline", "text": "orphan"}],
      "session_4": {"speaker": "Caroline"},
      "session_4_date_time": "10:00 AM on 01 January, 2023"
    },
    "qa": [
      {"question": "When did Caroline go to the LGBTQ support group?", "answer": "7 May 2023", "category": 2},
      {"question": "What year?", "answer": 2022, "category": "3"},
      {"question": "Adversarial?", "adversarial_answer": "x", "category": 5},
      42
    ]
  },
  "junk",
  {"sample_id": "no-conv"},
  {"sample_id": "bad-conv", "conversation": []}
]`

func TestParseDataset(t *testing.T) {
	res, err := ParseDataset([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 0, rec.Position)
	assert.Equal(t, "conv-26", rec.SampleID)
	assert.Equal(t, []string{"Caroline", "Melanie"}, rec.Participants())

	require.Len(t, rec.Sessions, 2)
	s1 := rec.Sessions[0]
	assert.Equal(t, "session_1", s1.Key)
	assert.Equal(t, 1, s1.Number)
	assert.Equal(t, "1:56 pm on 8 May, 2023", s1.DateTime)
	require.Len(t, s1.Turns, 2)
	assert.Equal(t, 3, s1.DroppedTurns)
	assert.Nil(t, s1.Turns[0].ImageCaption)
	require.NotNil(t, s1.Turns[1].ImageCaption)
	assert.Equal(t, "a photo of a dog", *s1.Turns[1].ImageCaption)

	s2 := rec.Sessions[1]
	assert.Equal(t, "session_2", s2.Key)
	require.Len(t, s2.Turns, 1)
	assert.Nil(t, s2.Turns[0].ImageCaption, "null caption is treated as absent")

	require.Len(t, rec.QA, 3)
	assert.Equal(t, "7 May 2023", rec.QA[0].Answer)
	assert.Equal(t, "2", rec.QA[0].Category)
	assert.Equal(t, "2022", rec.QA[1].Answer)
	assert.Equal(t, "3", rec.QA[1].Category)
	assert.Equal(t, "", rec.QA[2].Answer)

	// session_4 non-array, qa[3] non-object, "junk", missing and non-object conversation.
	require.Len(t, res.Errors, 5)
	for _, e := range res.Errors {
		assert.ErrorIs(t, e, ErrDatasetFormat)
	}
}

func TestParseDataset_RunLevelErrors(t *testing.T) {
	_, err := ParseDataset([]byte(`{"conversation": {}}`))
	assert.ErrorIs(t, err, ErrDatasetFormat)

	_, err = ParseDataset([]byte(`[{`))
	assert.ErrorIs(t, err, ErrDatasetFormat)
}

func TestParseDataset_SpeakerFallback(t *testing.T) {
	res, err := ParseDataset([]byte(`[{"speaker_a": "A", "speaker_b": "B", "conversation": {}}]`))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"A", "B"}, res.Records[0].Participants())
	assert.Empty(t, res.Records[0].Sessions)
}

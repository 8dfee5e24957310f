package cmd

import (
	"testing"

	"github.com/mertkara/sharcprep/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolvedExperiment(t *testing.T) *config.Experiment {
	t.Helper()
	exp := &config.Experiment{TrainDataPath: "data/train.json"}
	exp.ApplyDefaults()
	require.NoError(t, exp.Validate())
	return exp
}

func TestCheckTypeTags(t *testing.T) {
	require.NoError(t, checkTypeTags(resolvedExperiment(t)))

	tests := []struct {
		name    string
		mutate  func(*config.Experiment)
		wantErr string
	}{
		{
			name:    "unknown reader type",
			mutate:  func(e *config.Experiment) { e.DatasetReader.Type = "csv" },
			wantErr: "csv",
		},
		{
			name:    "unknown tokenizer type",
			mutate:  func(e *config.Experiment) { e.DatasetReader.Tokenizer.Type = "sentencepiece" },
			wantErr: "sentencepiece",
		},
		{
			name: "unknown indexer type",
			mutate: func(e *config.Experiment) {
				e.DatasetReader.TokenIndexers["tokens"] = config.IndexerSpec{Type: "elmo"}
			},
			wantErr: "token_indexers.tokens",
		},
		{
			name:    "unknown iterator type",
			mutate:  func(e *config.Experiment) { e.Iterator.Type = "bogus" },
			wantErr: "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := resolvedExperiment(t)
			tt.mutate(exp)

			err := checkTypeTags(exp)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// A config can pass structural validation while naming a component type the
// pipeline cannot build; the tag check is what catches it.
func TestCheckTypeTags_CatchesWhatParseAccepts(t *testing.T) {
	raw := []byte(`{
  "dataset_reader": {"type": "bert_qa", "tokenizer": {"type": "word"}},
  "train_data_path": "data/train.json",
  "iterator": {"type": "bogus", "batch_size": 16}
}`)

	exp, err := config.ParseExperiment(raw, ".json")
	require.NoError(t, err)

	err = checkTypeTags(exp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

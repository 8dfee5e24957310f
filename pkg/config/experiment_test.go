package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadShippedConfig(t *testing.T) *Experiment {
	t.Helper()
	exp, err := LoadExperiment(filepath.Join("..", "..", "configs", "bert_qa.json"))
	require.NoError(t, err)
	return exp
}

func TestLoadExperiment_ShippedConfig(t *testing.T) {
	exp := loadShippedConfig(t)

	assert.Equal(t, "bert_qa", exp.DatasetReader.Type)
	assert.Equal(t, "bert-pretrained", exp.DatasetReader.Tokenizer.Type)
	assert.Equal(t, "bert-base-uncased", exp.DatasetReader.Tokenizer.PretrainedModel)
	assert.Equal(t, 384, exp.DatasetReader.MaxContextLength)

	require.Contains(t, exp.DatasetReader.TokenIndexers, "bert")
	bert := exp.DatasetReader.TokenIndexers["bert"]
	assert.Equal(t, "bert-pretrained-modified", bert.Type)
	assert.Equal(t, 512, bert.MaxPieces)
	assert.True(t, bert.UseStartingOffsets)

	require.NotNil(t, exp.Model.LossWeights)
	assert.Equal(t, float64(1), exp.Model.LossWeights.SpanLoss)
	assert.Equal(t, float64(5), exp.Model.LossWeights.ActionLoss)
	assert.Equal(t, []float64{1, 1, 1, 2}, exp.Model.SimClassWeights)

	assert.Equal(t, "bucket", exp.Iterator.Type)
	assert.Equal(t, 16, exp.Iterator.BatchSize)
	assert.Equal(t, [][2]string{{"passage", "num_tokens"}}, exp.Iterator.SortingKeys)
	require.NotNil(t, exp.Iterator.PaddingNoise)
	assert.Equal(t, 0.1, *exp.Iterator.PaddingNoise)

	assert.Equal(t, 20, exp.Trainer.NumEpochs)
	assert.Equal(t, 5, exp.Trainer.Patience)
	assert.Equal(t, "+macro_accuracy", exp.Trainer.ValidationMetric)
	assert.Equal(t, "bert_adam", exp.Trainer.Optimizer.Type)
	assert.Equal(t, 2e-5, exp.Trainer.Optimizer.LR)
	assert.Equal(t, -1, exp.Trainer.Optimizer.TTotal)
	assert.Equal(t, "warmup_linear", exp.Trainer.Optimizer.Schedule)

	require.Len(t, exp.Trainer.Optimizer.ParameterGroups, 1)
	group := exp.Trainer.Optimizer.ParameterGroups[0]
	assert.Equal(t, []string{"bias", `LayerNorm\.weight`, `layer_norm\.weight`}, group.Patterns)
	require.NotNil(t, group.Overrides.WeightDecay)
	assert.Equal(t, float64(0), *group.Overrides.WeightDecay)
	assert.Nil(t, group.Overrides.LR)
}

func TestExperiment_SerializeRoundTrip(t *testing.T) {
	exp := loadShippedConfig(t)

	data, err := exp.Serialize()
	require.NoError(t, err)

	reparsed, err := ParseExperiment(data, ".json")
	require.NoError(t, err)

	if diff := cmp.Diff(exp, reparsed); diff != "" {
		t.Errorf("experiment changed across serialize/parse (-want +got):\n%s", diff)
	}
}

func TestParseExperiment_YAML(t *testing.T) {
	raw := []byte(`
dataset_reader:
  type: bert_qa
  tokenizer:
    type: word
train_data_path: data/train.json
iterator:
  type: basic
  batch_size: 8
trainer:
  num_epochs: 5
  optimizer:
    type: bert_adam
    lr: 0.00002
    parameter_groups:
      - [["bias"], {"weight_decay": 0}]
`)

	exp, err := ParseExperiment(raw, ".yaml")
	require.NoError(t, err)

	assert.Equal(t, 8, exp.Iterator.BatchSize)
	require.Len(t, exp.Trainer.Optimizer.ParameterGroups, 1)
	group := exp.Trainer.Optimizer.ParameterGroups[0]
	assert.Equal(t, []string{"bias"}, group.Patterns)
	require.NotNil(t, group.Overrides.WeightDecay)
	assert.Equal(t, float64(0), *group.Overrides.WeightDecay)
}

func TestParseExperiment_BadParameterGroup(t *testing.T) {
	raw := []byte(`{
  "train_data_path": "data/train.json",
  "trainer": {"optimizer": {"parameter_groups": [{"lr": 1}]}}
}`)

	_, err := ParseExperiment(raw, ".json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter group")
}

func TestParseExperiment_ExplicitZerosPreserved(t *testing.T) {
	raw := []byte(`{
  "dataset_reader": {"type": "bert_qa", "tokenizer": {"type": "word"}},
  "train_data_path": "data/train.json",
  "model": {"loss_weights": {"span_loss": 0, "action_loss": 0}},
  "iterator": {
    "type": "bucket",
    "sorting_keys": [["passage", "num_tokens"]],
    "batch_size": 16,
    "padding_noise": 0
  }
}`)

	exp, err := ParseExperiment(raw, ".json")
	require.NoError(t, err)

	// An explicit zero turns the sort-key jitter off; it must not be
	// rewritten to the bucket default.
	require.NotNil(t, exp.Iterator.PaddingNoise)
	assert.Equal(t, float64(0), *exp.Iterator.PaddingNoise)

	require.NotNil(t, exp.Model.LossWeights)
	assert.Equal(t, float64(0), exp.Model.LossWeights.SpanLoss)
	assert.Equal(t, float64(0), exp.Model.LossWeights.ActionLoss)
}

func TestExperiment_ApplyDefaults(t *testing.T) {
	exp := &Experiment{TrainDataPath: "data/train.json"}
	exp.ApplyDefaults()

	assert.Equal(t, "bert_qa", exp.DatasetReader.Type)
	assert.Equal(t, "word", exp.DatasetReader.Tokenizer.Type)
	require.Contains(t, exp.DatasetReader.TokenIndexers, "tokens")
	assert.Equal(t, "single_id", exp.DatasetReader.TokenIndexers["tokens"].Type)
	assert.Equal(t, 384, exp.DatasetReader.MaxContextLength)
	require.NotNil(t, exp.DatasetReader.AddHistory)
	assert.True(t, *exp.DatasetReader.AddHistory)

	require.NotNil(t, exp.Model.LossWeights)
	assert.Equal(t, LossWeights{SpanLoss: 1, ActionLoss: 1}, *exp.Model.LossWeights)

	assert.Equal(t, "basic", exp.Iterator.Type)
	assert.Equal(t, 32, exp.Iterator.BatchSize)

	assert.Equal(t, 10, exp.Trainer.NumEpochs)
	assert.Equal(t, "-loss", exp.Trainer.ValidationMetric)
	assert.Equal(t, "bert_adam", exp.Trainer.Optimizer.Type)
	assert.Equal(t, 2e-5, exp.Trainer.Optimizer.LR)
	assert.Equal(t, -1, exp.Trainer.Optimizer.TTotal)

	require.NoError(t, exp.Validate())
}

func TestExperiment_Validate(t *testing.T) {
	valid := func() *Experiment {
		exp := &Experiment{TrainDataPath: "data/train.json"}
		exp.ApplyDefaults()
		return exp
	}

	tests := []struct {
		name    string
		mutate  func(*Experiment)
		wantErr string
	}{
		{
			name:    "missing train data path",
			mutate:  func(e *Experiment) { e.TrainDataPath = "" },
			wantErr: "train_data_path",
		},
		{
			name:    "zero batch size",
			mutate:  func(e *Experiment) { e.Iterator.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "bucket without sorting keys",
			mutate:  func(e *Experiment) { e.Iterator.Type = "bucket" },
			wantErr: "sorting_keys",
		},
		{
			name:    "patience exceeds epochs",
			mutate:  func(e *Experiment) { e.Trainer.Patience = 99 },
			wantErr: "patience",
		},
		{
			name:    "unsigned validation metric",
			mutate:  func(e *Experiment) { e.Trainer.ValidationMetric = "accuracy" },
			wantErr: "validation_metric",
		},
		{
			name:    "negative learning rate",
			mutate:  func(e *Experiment) { e.Trainer.Optimizer.LR = -1 },
			wantErr: "lr",
		},
		{
			name:    "warmup above one",
			mutate:  func(e *Experiment) { e.Trainer.Optimizer.Warmup = 1.5 },
			wantErr: "warmup",
		},
		{
			name: "negative loss weight",
			mutate: func(e *Experiment) {
				e.Model.LossWeights.SpanLoss = -1
			},
			wantErr: "loss_weights",
		},
		{
			name: "parameter group without patterns",
			mutate: func(e *Experiment) {
				e.Trainer.Optimizer.ParameterGroups = []ParameterGroup{{}}
			},
			wantErr: "patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := valid()
			require.NoError(t, exp.Validate())

			tt.mutate(exp)
			err := exp.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

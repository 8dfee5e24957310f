package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Experiment mirrors the key schema consumed by the training framework: a
// dataset reader, data paths, a model section, a batching iterator and a
// trainer. Only the dataset-reader and iterator sections drive behavior in
// this tool; the model and trainer sections are carried, validated and
// resolved (parameter groups, schedules) but never executed here.
type Experiment struct {
	DatasetReader      DatasetReader `json:"dataset_reader" yaml:"dataset_reader"`
	TrainDataPath      string        `json:"train_data_path" yaml:"train_data_path"`
	ValidationDataPath string        `json:"validation_data_path,omitempty" yaml:"validation_data_path,omitempty"`
	Model              Model         `json:"model" yaml:"model"`
	Iterator           Iterator      `json:"iterator" yaml:"iterator"`
	Trainer            Trainer       `json:"trainer" yaml:"trainer"`
}

type DatasetReader struct {
	Type             string                 `json:"type" yaml:"type"`
	Lazy             bool                   `json:"lazy,omitempty" yaml:"lazy,omitempty"`
	Tokenizer        TokenizerSpec          `json:"tokenizer" yaml:"tokenizer"`
	TokenIndexers    map[string]IndexerSpec `json:"token_indexers" yaml:"token_indexers"`
	MaxContextLength int                    `json:"max_context_length,omitempty" yaml:"max_context_length,omitempty"`
	AddHistory       *bool                  `json:"add_history,omitempty" yaml:"add_history,omitempty"`
	AddScenario      *bool                  `json:"add_scenario,omitempty" yaml:"add_scenario,omitempty"`
}

type TokenizerSpec struct {
	Type            string   `json:"type" yaml:"type"`
	PretrainedModel string   `json:"pretrained_model,omitempty" yaml:"pretrained_model,omitempty"`
	DoLowercase     *bool    `json:"do_lowercase,omitempty" yaml:"do_lowercase,omitempty"`
	NeverSplit      []string `json:"never_split,omitempty" yaml:"never_split,omitempty"`
}

type IndexerSpec struct {
	Type               string `json:"type" yaml:"type"`
	PretrainedModel    string `json:"pretrained_model,omitempty" yaml:"pretrained_model,omitempty"`
	Namespace          string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	DoLowercase        *bool  `json:"do_lowercase,omitempty" yaml:"do_lowercase,omitempty"`
	UseStartingOffsets bool   `json:"use_starting_offsets,omitempty" yaml:"use_starting_offsets,omitempty"`
	MaxPieces          int    `json:"max_pieces,omitempty" yaml:"max_pieces,omitempty"`
}

type Model struct {
	Type                string            `json:"type" yaml:"type"`
	TextFieldEmbedder   TextFieldEmbedder `json:"text_field_embedder" yaml:"text_field_embedder"`
	LossWeights         *LossWeights      `json:"loss_weights" yaml:"loss_weights"`
	SimClassWeights     []float64         `json:"sim_class_weights,omitempty" yaml:"sim_class_weights,omitempty"`
	Dropout             float64           `json:"dropout,omitempty" yaml:"dropout,omitempty"`
	UseScenarioEncoding *bool             `json:"use_scenario_encoding,omitempty" yaml:"use_scenario_encoding,omitempty"`
	SimPretraining      bool              `json:"sim_pretraining,omitempty" yaml:"sim_pretraining,omitempty"`
}

type TextFieldEmbedder struct {
	TokenEmbedders map[string]TokenEmbedder `json:"token_embedders" yaml:"token_embedders"`
}

type TokenEmbedder struct {
	Type            string `json:"type" yaml:"type"`
	PretrainedModel string `json:"pretrained_model,omitempty" yaml:"pretrained_model,omitempty"`
	RequiresGrad    bool   `json:"requires_grad,omitempty" yaml:"requires_grad,omitempty"`
	TopLayerOnly    bool   `json:"top_layer_only,omitempty" yaml:"top_layer_only,omitempty"`
}

type LossWeights struct {
	SpanLoss   float64 `json:"span_loss" yaml:"span_loss"`
	ActionLoss float64 `json:"action_loss" yaml:"action_loss"`
}

type Iterator struct {
	Type                 string      `json:"type" yaml:"type"`
	SortingKeys          [][2]string `json:"sorting_keys,omitempty" yaml:"sorting_keys,omitempty"`
	BatchSize            int         `json:"batch_size" yaml:"batch_size"`
	PaddingNoise         *float64    `json:"padding_noise,omitempty" yaml:"padding_noise,omitempty"`
	MaxInstancesInMemory int         `json:"max_instances_in_memory,omitempty" yaml:"max_instances_in_memory,omitempty"`
}

type Trainer struct {
	Type                      string    `json:"type,omitempty" yaml:"type,omitempty"`
	NumEpochs                 int       `json:"num_epochs" yaml:"num_epochs"`
	Patience                  int       `json:"patience,omitempty" yaml:"patience,omitempty"`
	ValidationMetric          string    `json:"validation_metric,omitempty" yaml:"validation_metric,omitempty"`
	CudaDevice                int       `json:"cuda_device" yaml:"cuda_device"`
	GradNorm                  float64   `json:"grad_norm,omitempty" yaml:"grad_norm,omitempty"`
	NumSerializedModelsToKeep int       `json:"num_serialized_models_to_keep,omitempty" yaml:"num_serialized_models_to_keep,omitempty"`
	Optimizer                 Optimizer `json:"optimizer" yaml:"optimizer"`
}

type Optimizer struct {
	Type            string           `json:"type" yaml:"type"`
	LR              float64          `json:"lr" yaml:"lr"`
	WeightDecay     float64          `json:"weight_decay,omitempty" yaml:"weight_decay,omitempty"`
	Warmup          float64          `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	TTotal          int              `json:"t_total,omitempty" yaml:"t_total,omitempty"`
	Schedule        string           `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	ParameterGroups []ParameterGroup `json:"parameter_groups,omitempty" yaml:"parameter_groups,omitempty"`
}

// ParameterGroup is serialized as a two-element array: a list of parameter
// name regexes and a record of per-group overrides.
type ParameterGroup struct {
	Patterns  []string
	Overrides GroupOverrides
}

type GroupOverrides struct {
	LR          *float64 `json:"lr,omitempty" yaml:"lr,omitempty"`
	WeightDecay *float64 `json:"weight_decay,omitempty" yaml:"weight_decay,omitempty"`
}

func (g ParameterGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{g.Patterns, g.Overrides})
}

func (g *ParameterGroup) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parameter group must be a [patterns, overrides] pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &g.Patterns); err != nil {
		return fmt.Errorf("parameter group patterns: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.Overrides); err != nil {
		return fmt.Errorf("parameter group overrides: %w", err)
	}
	return nil
}

func (g ParameterGroup) MarshalYAML() (interface{}, error) {
	return []interface{}{g.Patterns, g.Overrides}, nil
}

func (g *ParameterGroup) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("parameter group must be a [patterns, overrides] pair")
	}
	if err := value.Content[0].Decode(&g.Patterns); err != nil {
		return fmt.Errorf("parameter group patterns: %w", err)
	}
	if err := value.Content[1].Decode(&g.Overrides); err != nil {
		return fmt.Errorf("parameter group overrides: %w", err)
	}
	return nil
}

// LoadExperiment reads an experiment file. JSON is the canonical format;
// YAML is accepted based on the file extension.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}

	exp, err := ParseExperiment(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return exp, nil
}

func ParseExperiment(data []byte, ext string) (*Experiment, error) {
	var exp Experiment

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &exp); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&exp); err != nil {
			return nil, err
		}
	}

	exp.ApplyDefaults()

	if err := exp.Validate(); err != nil {
		return nil, err
	}

	return &exp, nil
}

// MarshalJSON output of the whole experiment is the canonical serialization:
// parse -> Serialize -> parse must yield the same resolved experiment.
func (e *Experiment) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("failed to serialize experiment: %w", err)
	}
	return buf.Bytes(), nil
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }

// ApplyDefaults fills unset fields with the values the pipeline assumes.
// The shipped configs set most of these explicitly; defaults exist so a
// minimal hand-written experiment file still resolves. Pointer fields
// distinguish absent from explicit zero: `"padding_noise": 0` stays 0.
func (e *Experiment) ApplyDefaults() {
	r := &e.DatasetReader
	if r.Type == "" {
		r.Type = "bert_qa"
	}
	if r.Tokenizer.Type == "" {
		r.Tokenizer.Type = "word"
	}
	if len(r.TokenIndexers) == 0 {
		r.TokenIndexers = map[string]IndexerSpec{
			"tokens": {Type: "single_id"},
		}
	}
	for name, idx := range r.TokenIndexers {
		if idx.Type == "bert-pretrained-modified" && idx.MaxPieces == 0 {
			idx.MaxPieces = 512
			r.TokenIndexers[name] = idx
		}
	}
	if r.MaxContextLength == 0 {
		r.MaxContextLength = 384
	}
	if r.AddHistory == nil {
		r.AddHistory = boolPtr(true)
	}
	if r.AddScenario == nil {
		r.AddScenario = boolPtr(true)
	}

	if e.Model.Type == "" {
		e.Model.Type = "bert_qa"
	}
	if e.Model.LossWeights == nil {
		e.Model.LossWeights = &LossWeights{SpanLoss: 1, ActionLoss: 1}
	}
	if e.Model.UseScenarioEncoding == nil {
		e.Model.UseScenarioEncoding = boolPtr(true)
	}

	if e.Iterator.Type == "" {
		e.Iterator.Type = "basic"
	}
	if e.Iterator.BatchSize == 0 {
		e.Iterator.BatchSize = 32
	}
	if e.Iterator.Type == "bucket" && e.Iterator.PaddingNoise == nil {
		e.Iterator.PaddingNoise = floatPtr(0.1)
	}

	t := &e.Trainer
	if t.NumEpochs == 0 {
		t.NumEpochs = 10
	}
	if t.ValidationMetric == "" {
		t.ValidationMetric = "-loss"
	}
	if t.Optimizer.Type == "" {
		t.Optimizer.Type = "bert_adam"
	}
	if t.Optimizer.LR == 0 {
		t.Optimizer.LR = 2e-5
	}
	if t.Optimizer.Schedule == "" {
		t.Optimizer.Schedule = "warmup_linear"
	}
	if t.Optimizer.TTotal == 0 {
		t.Optimizer.TTotal = -1
	}
}

// Validate checks the structural properties the pipeline itself depends on.
// Deeper semantic checks (embedder shapes, optimizer internals) belong to the
// training framework consuming the file.
func (e *Experiment) Validate() error {
	if e.TrainDataPath == "" {
		return fmt.Errorf("train_data_path is required")
	}

	r := e.DatasetReader
	if r.MaxContextLength < 0 {
		return fmt.Errorf("dataset_reader.max_context_length must not be negative")
	}
	for name, idx := range r.TokenIndexers {
		if idx.Type == "" {
			return fmt.Errorf("token_indexers.%s.type is required", name)
		}
		if idx.MaxPieces < 0 {
			return fmt.Errorf("token_indexers.%s.max_pieces must not be negative", name)
		}
	}

	if w := e.Model.LossWeights; w != nil && (w.SpanLoss < 0 || w.ActionLoss < 0) {
		return fmt.Errorf("model.loss_weights must not be negative")
	}
	for i, w := range e.Model.SimClassWeights {
		if w < 0 {
			return fmt.Errorf("model.sim_class_weights[%d] must not be negative", i)
		}
	}

	it := e.Iterator
	if it.BatchSize <= 0 {
		return fmt.Errorf("iterator.batch_size must be greater than 0")
	}
	if it.Type == "bucket" && len(it.SortingKeys) == 0 {
		return fmt.Errorf("iterator.sorting_keys is required for the bucket iterator")
	}
	if it.PaddingNoise != nil && *it.PaddingNoise < 0 {
		return fmt.Errorf("iterator.padding_noise must not be negative")
	}

	t := e.Trainer
	if t.NumEpochs <= 0 {
		return fmt.Errorf("trainer.num_epochs must be greater than 0")
	}
	if t.Patience < 0 {
		return fmt.Errorf("trainer.patience must not be negative")
	}
	if t.Patience > t.NumEpochs {
		return fmt.Errorf("trainer.patience (%d) exceeds num_epochs (%d)", t.Patience, t.NumEpochs)
	}
	if m := t.ValidationMetric; m != "" && m[0] != '+' && m[0] != '-' {
		return fmt.Errorf("trainer.validation_metric must be signed, e.g. %q", "+macro_accuracy")
	}
	if t.Optimizer.LR <= 0 {
		return fmt.Errorf("trainer.optimizer.lr must be greater than 0")
	}
	if t.Optimizer.WeightDecay < 0 {
		return fmt.Errorf("trainer.optimizer.weight_decay must not be negative")
	}
	if w := t.Optimizer.Warmup; w < 0 || w > 1 {
		return fmt.Errorf("trainer.optimizer.warmup must be a fraction between 0 and 1")
	}
	for i, g := range t.Optimizer.ParameterGroups {
		if len(g.Patterns) == 0 {
			return fmt.Errorf("trainer.optimizer.parameter_groups[%d] has no patterns", i)
		}
	}

	return nil
}

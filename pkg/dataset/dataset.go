// Package dataset reads ShARC-style conversational machine reading data and
// turns each utterance into a model-ready instance.
package dataset

import (
	"context"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/registry"
)

var DebugLog func(string, ...interface{})

// Utterance is one record of the ShARC JSON format.
type Utterance struct {
	UtteranceID string        `json:"utterance_id"`
	TreeID      string        `json:"tree_id"`
	SourceURL   string        `json:"source_url"`
	Snippet     string        `json:"snippet"`
	Question    string        `json:"question"`
	Scenario    string        `json:"scenario"`
	History     []HistoryTurn `json:"history"`
	Answer      string        `json:"answer,omitempty"`
	Evidence    []Evidence    `json:"evidence,omitempty"`
}

type HistoryTurn struct {
	FollowUpQuestion string `json:"follow_up_question"`
	FollowUpAnswer   string `json:"follow_up_answer"`
}

type Evidence struct {
	FollowUpQuestion string `json:"follow_up_question,omitempty"`
	FollowUpAnswer   string `json:"follow_up_answer,omitempty"`
}

// Actions a conversational machine reading model decides between. Any answer
// that is not a terminal decision means the model must ask the follow-up
// question it extracts from the rule text.
const (
	ActionYes        = "Yes"
	ActionNo         = "No"
	ActionIrrelevant = "Irrelevant"
	ActionMore       = "More"
)

// ActionLabel maps a gold answer string to its decision class.
func ActionLabel(answer string) string {
	switch answer {
	case ActionYes, ActionNo, ActionIrrelevant:
		return answer
	default:
		return ActionMore
	}
}

type Result struct {
	Instance *Instance
	Source   string
	Error    error
}

type Reader interface {
	// Read streams instances from the data file at path, which may be an
	// URL. The channel closes when the file is exhausted or ctx is done.
	Read(ctx context.Context, path string) <-chan Result

	Name() string
}

type ReaderCtor func(ctx context.Context, spec config.DatasetReader) (Reader, error)

var Readers = registry.New[ReaderCtor]("dataset reader")

func init() {
	Readers.Register("bert_qa", newBertQAFromSpec)
	Readers.Register("sharc_net", newSharcNetFromSpec)
}

func NewReader(ctx context.Context, spec config.DatasetReader) (Reader, error) {
	ctor, err := Readers.Lookup(spec.Type)
	if err != nil {
		return nil, err
	}
	return ctor(ctx, spec)
}

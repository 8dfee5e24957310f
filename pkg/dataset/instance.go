package dataset

import (
	"encoding/json"

	"github.com/mertkara/sharcprep/pkg/tokenize"
)

// Instance is one prepared training example. The span-prediction fields are
// filled by the bert_qa reader; the source/target fields by the sharc_net
// reader. Both serialize to a single JSONL shape for export.
type Instance struct {
	UtteranceID string `json:"utterance_id"`
	TreeID      string `json:"tree_id,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`

	PassageTokens  []string `json:"passage_tokens,omitempty"`
	QuestionTokens []string `json:"question_tokens,omitempty"`

	// Indexed token views, keyed by indexer name from the experiment file.
	Passage  map[string]tokenize.Indexed `json:"passage,omitempty"`
	Question map[string]tokenize.Indexed `json:"question,omitempty"`

	// Gold span of the follow-up question inside the passage, token
	// positions, inclusive. -1/-1 when the action is terminal or the
	// answer cannot be located.
	SpanStart int `json:"span_start"`
	SpanEnd   int `json:"span_end"`

	// Action is the decision label: Yes, No, Irrelevant or More.
	Action string `json:"action,omitempty"`

	SourceTokens   []string `json:"source_tokens,omitempty"`
	TargetTokens   []string `json:"target_tokens,omitempty"`
	SourceTokenIDs []int    `json:"source_token_ids,omitempty"`
	TargetTokenIDs []int    `json:"target_token_ids,omitempty"`

	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	RuleText string        `json:"rule_text"`
	Question string        `json:"question"`
	Scenario string        `json:"scenario,omitempty"`
	History  []HistoryTurn `json:"history,omitempty"`
	Answer   string        `json:"answer,omitempty"`
}

func (i *Instance) MarshalJSONL() ([]byte, error) {
	return json.Marshal(i)
}

// HasSpan reports whether the instance carries gold span supervision.
func (i *Instance) HasSpan() bool {
	return i.SpanStart >= 0 && i.SpanEnd >= i.SpanStart
}

package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/fetch"
	"github.com/mertkara/sharcprep/pkg/tokenize"
)

// Dialogue markers that structure the question side of each instance.
const (
	MarkerQuestion     = "@@QS@@"
	MarkerScenario     = "@@SS@@"
	MarkerHistoryStart = "@@HS@@"
	MarkerHistoryEnd   = "@@HE@@"
)

// BertQA prepares span-prediction instances: the rule text becomes the
// passage, and the question, scenario and dialogue history are concatenated
// with markers into the question sequence.
type BertQA struct {
	tokenizer        tokenize.Tokenizer
	indexers         map[string]tokenize.Indexer
	maxContextLength int
	addHistory       bool
	addScenario      bool
	fetcher          *fetch.Client
}

func newBertQAFromSpec(ctx context.Context, spec config.DatasetReader) (Reader, error) {
	tokenizerSpec := spec.Tokenizer
	tokenizerSpec.NeverSplit = append(tokenizerSpec.NeverSplit,
		MarkerQuestion, MarkerScenario, MarkerHistoryStart, MarkerHistoryEnd)

	tokenizer, err := tokenize.NewTokenizer(ctx, tokenizerSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokenizer: %w", err)
	}

	indexers := make(map[string]tokenize.Indexer, len(spec.TokenIndexers))
	for name, indexerSpec := range spec.TokenIndexers {
		indexer, err := tokenize.NewIndexer(ctx, indexerSpec)
		if err != nil {
			return nil, fmt.Errorf("failed to build token indexer %q: %w", name, err)
		}
		indexers[name] = indexer
	}

	addHistory := spec.AddHistory == nil || *spec.AddHistory
	addScenario := spec.AddScenario == nil || *spec.AddScenario

	return &BertQA{
		tokenizer:        tokenizer,
		indexers:         indexers,
		maxContextLength: spec.MaxContextLength,
		addHistory:       addHistory,
		addScenario:      addScenario,
		fetcher:          fetch.New(""),
	}, nil
}

func (r *BertQA) Name() string {
	return "bert_qa"
}

func (r *BertQA) Read(ctx context.Context, path string) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		utterances, err := loadUtterances(ctx, r.fetcher, path)
		if err != nil {
			results <- Result{Source: r.Name(), Error: err}
			return
		}

		if DebugLog != nil {
			DebugLog("read %d utterances from %s", len(utterances), path)
		}

		for i := range utterances {
			instance, err := r.TextToInstance(&utterances[i])
			if err != nil {
				results <- Result{Source: r.Name(), Error: fmt.Errorf("utterance %s: %w", utterances[i].UtteranceID, err)}
				continue
			}

			select {
			case results <- Result{Source: r.Name(), Instance: instance}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// TextToInstance builds one instance from a raw utterance.
func (r *BertQA) TextToInstance(u *Utterance) (*Instance, error) {
	rule := FlattenBullets(u.Snippet)

	passageTokens := r.tokenizer.Tokenize(rule)
	if r.maxContextLength > 0 && len(passageTokens) > r.maxContextLength {
		passageTokens = passageTokens[:r.maxContextLength]
	}

	questionTokens := r.tokenizer.Tokenize(r.questionText(u))

	instance := &Instance{
		UtteranceID:    u.UtteranceID,
		TreeID:         u.TreeID,
		SourceURL:      u.SourceURL,
		PassageTokens:  passageTokens,
		QuestionTokens: questionTokens,
		SpanStart:      -1,
		SpanEnd:        -1,
		Metadata: Metadata{
			RuleText: u.Snippet,
			Question: u.Question,
			Scenario: u.Scenario,
			History:  u.History,
			Answer:   u.Answer,
		},
	}

	if u.Answer != "" {
		instance.Action = ActionLabel(u.Answer)
		if instance.Action == ActionMore {
			instance.SpanStart, instance.SpanEnd = findSpan(passageTokens, r.tokenizer.Tokenize(u.Answer))
		}
	}

	if len(r.indexers) > 0 {
		instance.Passage = make(map[string]tokenize.Indexed, len(r.indexers))
		instance.Question = make(map[string]tokenize.Indexed, len(r.indexers))
		for name, indexer := range r.indexers {
			indexed, err := indexer.IndexTokens(passageTokens)
			if err != nil {
				return nil, fmt.Errorf("indexing passage with %q: %w", name, err)
			}
			instance.Passage[name] = indexed

			indexed, err = indexer.IndexTokens(questionTokens)
			if err != nil {
				return nil, fmt.Errorf("indexing question with %q: %w", name, err)
			}
			instance.Question[name] = indexed
		}
	}

	return instance, nil
}

// questionText joins the user question with the scenario and the dialogue
// history, delimited by markers the tokenizer keeps intact.
func (r *BertQA) questionText(u *Utterance) string {
	var b strings.Builder

	b.WriteString(MarkerQuestion + " " + u.Question)

	if r.addScenario && u.Scenario != "" {
		b.WriteString(" " + MarkerScenario + " " + u.Scenario)
	}

	if r.addHistory {
		b.WriteString(" " + MarkerHistoryStart + " ")
		for _, turn := range u.History {
			b.WriteString(MarkerQuestion + " ")
			b.WriteString(turn.FollowUpQuestion + " ")
			b.WriteString(turn.FollowUpAnswer + " ")
		}
		b.WriteString(MarkerHistoryEnd)
	}

	return b.String()
}

// findSpan locates the answer token sequence inside the passage,
// case-insensitively, returning inclusive token positions or -1/-1.
func findSpan(passage, answer []string) (int, int) {
	if len(answer) == 0 || len(answer) > len(passage) {
		return -1, -1
	}

	for start := 0; start+len(answer) <= len(passage); start++ {
		matched := true
		for i, tok := range answer {
			if !strings.EqualFold(passage[start+i], tok) {
				matched = false
				break
			}
		}
		if matched {
			return start, start + len(answer) - 1
		}
	}

	return -1, -1
}

func loadUtterances(ctx context.Context, fetcher *fetch.Client, path string) ([]Utterance, error) {
	local, err := fetcher.CachedPath(ctx, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var utterances []Utterance
	if err := json.Unmarshal(data, &utterances); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	return utterances, nil
}

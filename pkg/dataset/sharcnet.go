package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/fetch"
	"github.com/mertkara/sharcprep/pkg/tokenize"
)

// Sequence sentinels for the generation-style reader.
const (
	StartSymbol = "@start@"
	EndSymbol   = "@end@"

	MarkerRuleStart = "@@RS@@"
	MarkerRuleEnd   = "@@RE@@"
)

// SharcNet prepares generation-style instances: the rule text plus the asked
// follow-up questions become the source sequence, the gold answer the target
// sequence. Token ids are deduplicated per instance so that copy mechanisms
// can align source and target occurrences of the same word.
type SharcNet struct {
	tokenizer tokenize.Tokenizer
	fetcher   *fetch.Client
}

func newSharcNetFromSpec(ctx context.Context, spec config.DatasetReader) (Reader, error) {
	tokenizerSpec := spec.Tokenizer
	tokenizerSpec.NeverSplit = append(tokenizerSpec.NeverSplit, MarkerRuleStart, MarkerRuleEnd)

	tokenizer, err := tokenize.NewTokenizer(ctx, tokenizerSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokenizer: %w", err)
	}

	return &SharcNet{
		tokenizer: tokenizer,
		fetcher:   fetch.New(""),
	}, nil
}

func (r *SharcNet) Name() string {
	return "sharc_net"
}

func (r *SharcNet) Read(ctx context.Context, path string) <-chan Result {
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
			instance := r.TextToInstance(&utterances[i])

			select {
			case results <- Result{Source: r.Name(), Instance: instance}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

func (r *SharcNet) TextToInstance(u *Utterance) *Instance {
	var source strings.Builder
	source.WriteString(MarkerRuleStart + " " + u.Snippet + " " + MarkerRuleEnd + " ")
	for _, turn := range u.History {
		source.WriteString(turn.FollowUpQuestion + " ")
	}

	sourceTokens := r.tokenizer.Tokenize(source.String())
	sourceTokens = append([]string{StartSymbol}, append(sourceTokens, EndSymbol)...)

	instance := &Instance{
		UtteranceID:  u.UtteranceID,
		TreeID:       u.TreeID,
		SourceURL:    u.SourceURL,
		SourceTokens: sourceTokens,
		SpanStart:    -1,
		SpanEnd:      -1,
		Metadata: Metadata{
			RuleText: u.Snippet,
			Question: u.Question,
			Scenario: u.Scenario,
			History:  u.History,
			Answer:   u.Answer,
		},
	}

	trimmedSource := sourceTokens[1 : len(sourceTokens)-1]

	if u.Answer != "" {
		targetTokens := r.tokenizer.Tokenize(u.Answer)
		targetTokens = append([]string{StartSymbol}, append(targetTokens, EndSymbol)...)
		instance.TargetTokens = targetTokens
		instance.Action = ActionLabel(u.Answer)

		// Source and target share one id space so copied tokens line up.
		joint := tokensToIDs(append(append([]string{}, trimmedSource...), targetTokens...))
		instance.SourceTokenIDs = joint[:len(trimmedSource)]
		instance.TargetTokenIDs = joint[len(trimmedSource):]
	} else {
		instance.SourceTokenIDs = tokensToIDs(trimmedSource)
	}

	return instance
}

// tokensToIDs assigns each distinct token (case-insensitive) an incremental
// id within the sequence.
func tokensToIDs(tokens []string) []int {
	ids := make(map[string]int)
	out := make([]int, 0, len(tokens))
	for _, token := range tokens {
		key := strings.ToLower(token)
		id, ok := ids[key]
		if !ok {
			id = len(ids)
			ids[key] = id
		}
		out = append(out, id)
	}
	return out
}

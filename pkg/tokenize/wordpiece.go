package tokenize

import (
	"context"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/fetch"
)

// maxWordpieceChars guards the greedy matcher against pathological inputs;
// longer words map straight to [UNK].
const maxWordpieceChars = 100

// WordpieceTokenizer runs basic word splitting followed by greedy
// longest-match wordpiece segmentation against a pretrained vocabulary.
// Continuation pieces carry the ## prefix.
type WordpieceTokenizer struct {
	vocab *Vocab
	basic *WordTokenizer
}

func newWordpieceFromSpec(ctx context.Context, spec config.TokenizerSpec) (Tokenizer, error) {
	vocabPath, err := fetch.New(config.GetVocabCacheDir()).VocabPath(ctx, spec.PretrainedModel)
	if err != nil {
		return nil, err
	}

	vocab, err := LoadVocab(vocabPath)
	if err != nil {
		return nil, err
	}

	return NewWordpieceTokenizer(vocab, spec), nil
}

func NewWordpieceTokenizer(vocab *Vocab, spec config.TokenizerSpec) *WordpieceTokenizer {
	basicSpec := config.TokenizerSpec{
		DoLowercase: spec.DoLowercase,
		NeverSplit:  spec.NeverSplit,
	}
	if basicSpec.DoLowercase == nil {
		// bert-base-uncased style models expect lowercased input.
		lower := true
		basicSpec.DoLowercase = &lower
	}

	return &WordpieceTokenizer{
		vocab: vocab,
		basic: NewWordTokenizer(basicSpec),
	}
}

func (t *WordpieceTokenizer) Tokenize(text string) []string {
	var pieces []string
	for _, word := range t.basic.Tokenize(text) {
		pieces = append(pieces, t.Wordpieces(word)...)
	}
	return pieces
}

// Wordpieces segments a single word. The first piece is matched as-is,
// continuations are matched with the ## prefix.
func (t *WordpieceTokenizer) Wordpieces(word string) []string {
	if _, ok := t.vocab.ID(word); ok {
		return []string{word}
	}

	runes := []rune(word)
	if len(runes) > maxWordpieceChars {
		return []string{UnkToken}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		match := ""
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := t.vocab.ID(candidate); ok {
				match = candidate
				break
			}
			end--
		}
		if match == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, match)
		start = end
	}

	return pieces
}

func (t *WordpieceTokenizer) Vocab() *Vocab {
	return t.vocab
}

// HasPiece reports whether the vocabulary knows the piece.
func (t *WordpieceTokenizer) HasPiece(piece string) bool {
	_, ok := t.vocab.ID(piece)
	return ok
}

// Package tokenize holds the reader-side tokenizers and token indexers that
// experiment files select by type tag.
package tokenize

import (
	"context"
	"strings"
	"unicode"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/registry"
)

type Tokenizer interface {
	Tokenize(text string) []string
}

type TokenizerCtor func(ctx context.Context, spec config.TokenizerSpec) (Tokenizer, error)

var Tokenizers = registry.New[TokenizerCtor]("tokenizer")

func init() {
	Tokenizers.Register("word", func(ctx context.Context, spec config.TokenizerSpec) (Tokenizer, error) {
		return NewWordTokenizer(spec), nil
	})
	Tokenizers.Register("bert-pretrained", newWordpieceFromSpec)
}

// NewTokenizer resolves a tokenizer spec through the registry.
func NewTokenizer(ctx context.Context, spec config.TokenizerSpec) (Tokenizer, error) {
	ctor, err := Tokenizers.Lookup(spec.Type)
	if err != nil {
		return nil, err
	}
	return ctor(ctx, spec)
}

// WordTokenizer splits on whitespace and isolates punctuation runs, keeping
// configured never-split tokens (dialogue markers like @@QS@@) intact.
type WordTokenizer struct {
	lowercase  bool
	neverSplit map[string]struct{}
}

func NewWordTokenizer(spec config.TokenizerSpec) *WordTokenizer {
	t := &WordTokenizer{
		neverSplit: make(map[string]struct{}),
	}
	if spec.DoLowercase != nil {
		t.lowercase = *spec.DoLowercase
	}
	for _, tok := range spec.NeverSplit {
		t.neverSplit[tok] = struct{}{}
	}
	return t
}

func (t *WordTokenizer) Tokenize(text string) []string {
	var tokens []string

	for _, field := range strings.Fields(text) {
		if _, keep := t.neverSplit[field]; keep {
			tokens = append(tokens, field)
			continue
		}
		tokens = append(tokens, splitPunct(field, t.lowercase)...)
	}

	return tokens
}

func splitPunct(field string, lowercase bool) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range field {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			flush()
			tokens = append(tokens, string(r))
			continue
		}
		if lowercase {
			r = unicode.ToLower(r)
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

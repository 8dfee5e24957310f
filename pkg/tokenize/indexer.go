package tokenize

import (
	"context"
	"strings"
	"sync"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/fetch"
	"github.com/mertkara/sharcprep/pkg/registry"
)

// Indexed is the numeric view of a token sequence that gets serialized with
// each instance.
type Indexed struct {
	IDs     []int `json:"ids"`
	TypeIDs []int `json:"type_ids,omitempty"`
	Offsets []int `json:"offsets,omitempty"`
	Mask    []int `json:"mask"`
}

type Indexer interface {
	IndexTokens(tokens []string) (Indexed, error)
}

type IndexerCtor func(ctx context.Context, spec config.IndexerSpec) (Indexer, error)

var Indexers = registry.New[IndexerCtor]("token indexer")

func init() {
	Indexers.Register("single_id", func(ctx context.Context, spec config.IndexerSpec) (Indexer, error) {
		return NewSingleIDIndexer(spec), nil
	})
	Indexers.Register("bert-pretrained-modified", newBertIndexerFromSpec)
}

func NewIndexer(ctx context.Context, spec config.IndexerSpec) (Indexer, error) {
	ctor, err := Indexers.Lookup(spec.Type)
	if err != nil {
		return nil, err
	}
	return ctor(ctx, spec)
}

// SingleIDIndexer assigns incremental ids within a namespace, shared across
// every sequence it indexes. Tokens that match case-insensitively share an
// id.
type SingleIDIndexer struct {
	namespace string
	lowercase bool

	mu  sync.Mutex
	ids map[string]int
}

func NewSingleIDIndexer(spec config.IndexerSpec) *SingleIDIndexer {
	namespace := spec.Namespace
	if namespace == "" {
		namespace = "tokens"
	}

	lowercase := true
	if spec.DoLowercase != nil {
		lowercase = *spec.DoLowercase
	}

	return &SingleIDIndexer{
		namespace: namespace,
		lowercase: lowercase,
		ids:       make(map[string]int),
	}
}

func (x *SingleIDIndexer) IndexTokens(tokens []string) (Indexed, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := Indexed{
		IDs:  make([]int, 0, len(tokens)),
		Mask: make([]int, len(tokens)),
	}

	for i, token := range tokens {
		key := token
		if x.lowercase {
			key = strings.ToLower(token)
		}
		id, ok := x.ids[key]
		if !ok {
			id = len(x.ids)
			x.ids[key] = id
		}
		out.IDs = append(out.IDs, id)
		out.Mask[i] = 1
	}

	return out, nil
}

func (x *SingleIDIndexer) Namespace() string {
	return x.namespace
}

// VocabSize reports how many distinct tokens the namespace has seen.
func (x *SingleIDIndexer) VocabSize() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ids)
}

// BertIndexer maps word tokens to wordpiece ids framed by [CLS] and [SEP],
// with per-word offsets into the wordpiece sequence and segment type ids
// that flip after each [SEP].
type BertIndexer struct {
	wordpiece          *WordpieceTokenizer
	useStartingOffsets bool
	maxPieces          int
}

func newBertIndexerFromSpec(ctx context.Context, spec config.IndexerSpec) (Indexer, error) {
	vocabPath, err := fetch.New(config.GetVocabCacheDir()).VocabPath(ctx, spec.PretrainedModel)
	if err != nil {
		return nil, err
	}

	vocab, err := LoadVocab(vocabPath)
	if err != nil {
		return nil, err
	}

	return NewBertIndexer(vocab, spec), nil
}

func NewBertIndexer(vocab *Vocab, spec config.IndexerSpec) *BertIndexer {
	maxPieces := spec.MaxPieces
	if maxPieces == 0 {
		maxPieces = 512
	}

	return &BertIndexer{
		wordpiece: NewWordpieceTokenizer(vocab, config.TokenizerSpec{
			DoLowercase: spec.DoLowercase,
		}),
		useStartingOffsets: spec.UseStartingOffsets,
		maxPieces:          maxPieces,
	}
}

func (x *BertIndexer) IndexTokens(tokens []string) (Indexed, error) {
	vocab := x.wordpiece.Vocab()
	clsID, _ := vocab.ID(ClsToken)
	sepID, _ := vocab.ID(SepToken)

	pieces := []int{clsID}
	offsets := make([]int, 0, len(tokens))

	for _, token := range tokens {
		wordPieces := x.wordpiece.Wordpieces(token)

		// Truncate rather than overflow the model's position budget,
		// reserving room for the trailing [SEP].
		if len(pieces)+len(wordPieces) > x.maxPieces-1 {
			break
		}

		if x.useStartingOffsets {
			offsets = append(offsets, len(pieces))
		}
		for _, piece := range wordPieces {
			id, ok := vocab.ID(piece)
			if !ok {
				id, _ = vocab.ID(UnkToken)
			}
			pieces = append(pieces, id)
		}
		if !x.useStartingOffsets {
			offsets = append(offsets, len(pieces)-1)
		}
	}

	pieces = append(pieces, sepID)

	out := Indexed{
		IDs:     pieces,
		TypeIDs: make([]int, len(pieces)),
		Offsets: offsets,
		Mask:    make([]int, len(pieces)),
	}

	segment := 0
	for i, id := range pieces {
		out.Mask[i] = 1
		out.TypeIDs[i] = segment
		if id == sepID {
			segment++
		}
	}

	return out, nil
}

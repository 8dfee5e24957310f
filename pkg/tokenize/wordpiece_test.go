package tokenize

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mertkara/sharcprep/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab(t *testing.T) *Vocab {
	t.Helper()
	v, err := LoadVocab(filepath.Join("testdata", "vocab.txt"))
	require.NoError(t, err)
	return v
}

func TestLoadVocab(t *testing.T) {
	v := testVocab(t)

	id, ok := v.ID("[PAD]")
	require.True(t, ok)
	assert.Equal(t, 0, id)

	id, ok = v.ID("[UNK]")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	token, ok := v.Token(4)
	require.True(t, ok)
	assert.Equal(t, "the", token)

	_, ok = v.ID("xylophone")
	assert.False(t, ok)

	_, ok = v.Token(v.Size())
	assert.False(t, ok)
}

func TestLoadVocab_MissingFile(t *testing.T) {
	_, err := LoadVocab(filepath.Join("testdata", "no_such_vocab.txt"))
	require.Error(t, err)
}

func TestWordpieceTokenizer_Wordpieces(t *testing.T) {
	tok := NewWordpieceTokenizer(testVocab(t), config.TokenizerSpec{})

	tests := []struct {
		word string
		want []string
	}{
		{"the", []string{"the"}},
		{"wanted", []string{"want", "##ed"}},
		{"wawanting", []string{"wa", "##want", "##ing"}},
		{"running", []string{"runn", "##ing"}},
		{"playing", []string{"play", "##ing"}},
		{"xylophone", []string{"[UNK]"}},
		{strings.Repeat("a", maxWordpieceChars+1), []string{"[UNK]"}},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Wordpieces(tt.word))
		})
	}
}

func TestWordpieceTokenizer_Tokenize(t *testing.T) {
	tok := NewWordpieceTokenizer(testVocab(t), config.TokenizerSpec{})

	// Lowercasing defaults on, matching uncased pretrained vocabularies.
	got := tok.Tokenize("The dog wanted")
	assert.Equal(t, []string{"the", "dog", "want", "##ed"}, got)
}

func TestWordpieceTokenizer_HasPiece(t *testing.T) {
	tok := NewWordpieceTokenizer(testVocab(t), config.TokenizerSpec{})

	assert.True(t, tok.HasPiece("##ing"))
	assert.False(t, tok.HasPiece("##ump"))
}

package tokenize

import (
	"context"
	"testing"

	"github.com/mertkara/sharcprep/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordTokenizer(t *testing.T) {
	tests := []struct {
		name string
		spec config.TokenizerSpec
		text string
		want []string
	}{
		{
			name: "whitespace split",
			text: "the quick brown fox",
			want: []string{"the", "quick", "brown", "fox"},
		},
		{
			name: "punctuation isolated",
			text: "Do you qualify? Yes, maybe.",
			want: []string{"Do", "you", "qualify", "?", "Yes", ",", "maybe", "."},
		},
		{
			name: "lowercase",
			spec: config.TokenizerSpec{DoLowercase: boolPtr(true)},
			text: "British Citizen",
			want: []string{"british", "citizen"},
		},
		{
			name: "never split keeps markers whole",
			spec: config.TokenizerSpec{NeverSplit: []string{"@@QS@@", "@@SS@@"}},
			text: "@@QS@@ can I apply? @@SS@@ I am 65",
			want: []string{"@@QS@@", "can", "I", "apply", "?", "@@SS@@", "I", "am", "65"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := NewWordTokenizer(tt.spec)
			assert.Equal(t, tt.want, tok.Tokenize(tt.text))
		})
	}
}

func TestNewTokenizer_UnknownType(t *testing.T) {
	_, err := NewTokenizer(context.Background(), config.TokenizerSpec{Type: "sentencepiece"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentencepiece")
}

func boolPtr(v bool) *bool { return &v }

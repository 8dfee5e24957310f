package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArgs(t *testing.T) {
	in := []string{
		"sharcprep",
		"-c", "configs/bert_qa.json",
		"-es",
		"-settings", "sharcprep.yaml",
		"-silent",
		"-set", "iterator.batch_size=8",
		"--stats",
		"-o", "out.jsonl",
	}
	want := []string{
		"sharcprep",
		"-c", "configs/bert_qa.json",
		"--es",
		"--settings", "sharcprep.yaml",
		"--silent",
		"--set", "iterator.batch_size=8",
		"--stats",
		"-o", "out.jsonl",
	}
	assert.Equal(t, want, normalizeArgs(in))
	assert.Equal(t, []string{"sharcprep", "-c", "configs/bert_qa.json", "-es"}, in[:4],
		"input slice must not be mutated")
}

func TestNormalizeArgs_CoversAdvertisedFlags(t *testing.T) {
	for single, double := range singleDashAliases {
		got := normalizeArgs([]string{"sharcprep", single})
		assert.Equal(t, []string{"sharcprep", double}, got)
	}
}

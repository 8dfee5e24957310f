package tokenize

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Reserved wordpiece vocabulary entries.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
)

// Vocab is a wordpiece vocabulary: one token per line, the line number is
// the token id.
type Vocab struct {
	ids    map[string]int
	tokens []string
}

func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer f.Close()

	v := &Vocab{ids: make(map[string]int)}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		if _, dup := v.ids[token]; dup {
			continue
		}
		v.ids[token] = len(v.tokens)
		v.tokens = append(v.tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}

	if v.Size() == 0 {
		return nil, fmt.Errorf("vocab file %s is empty", path)
	}
	for _, required := range []string{UnkToken, ClsToken, SepToken} {
		if _, ok := v.ids[required]; !ok {
			return nil, fmt.Errorf("vocab file %s is missing %s", path, required)
		}
	}

	return v, nil
}

func (v *Vocab) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

func (v *Vocab) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

func (v *Vocab) Size() int {
	return len(v.tokens)
}

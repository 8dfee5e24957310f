package dataset

import (
	"regexp"
	"strings"
)

// bulletListRe matches a rule snippet of the form
//
//	pretext
//	condition:
//
//	* bullet one
//	* bullet two
//
// so the bullets can be flattened into standalone sentences.
var bulletListRe = regexp.MustCompile(`(?m)(.*?)\n*^(.+):\n\n((?:^\* .+\n*)+)`)

// Conjunctions that make bullet flattening unsafe: "either x or y" style
// conditions cannot be distributed over the bullets one by one.
var bulletExcludeWords = []string{"both", "following", "either", "including", "include"}

// FlattenBullets rewrites a bulleted condition list into one sentence per
// bullet ("condition bullet."), which puts each candidate follow-up question
// on its own extractable span. Rules whose condition suggests the bullets
// are not independent are returned unchanged.
func FlattenBullets(rule string) string {
	match := bulletListRe.FindStringSubmatch(rule)
	if match == nil {
		return rule
	}

	pretext := match[1]
	condition := match[2]
	bullets := match[3]

	head, tail := splitLastSentence(condition)
	pretext += "\n" + head
	condition = tail

	for _, word := range bulletExcludeWords {
		if strings.Contains(condition, word) {
			return rule
		}
	}

	var flattened strings.Builder
	flattened.WriteString(pretext)
	flattened.WriteString("\n")
	for _, line := range strings.Split(bullets, "\n") {
		if !strings.HasPrefix(line, "* ") {
			continue
		}
		flattened.WriteString(condition + " " + strings.TrimPrefix(line, "* ") + ".\n")
	}

	return flattened.String()
}

// splitLastSentence splits text at its final period: everything up to and
// including the period, and the remainder after the following space.
func splitLastSentence(text string) (string, string) {
	idx := strings.LastIndex(text, ".")
	if idx == -1 {
		return "", text
	}
	head := text[:idx+1]
	if idx+2 >= len(text) {
		return head, ""
	}
	return head, text[idx+2:]
}

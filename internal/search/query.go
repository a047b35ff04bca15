package search

import (
	"regexp"
	"strings"

	"github.com/lyy0709/contextweaver/internal/store"
)

var quotedPhraseRegex = regexp.MustCompile(`"([^"]+)"`)

// tokenizeLexicalQuery implements the lexical-recall tokenization rule
// of spec.md §4.9 step 3: split on whitespace, split on camelCase /
// snake_case boundaries, keep only ≥3-char alphanumeric tokens, and
// preserve quoted phrases verbatim. This differs deliberately from
// the chunk-indexing tokenizer's 2-char minimum (store.TokenizeCode) —
// query terms shorter than 3 characters are too noisy for recall,
// whereas very short identifiers are still worth indexing.
func tokenizeLexicalQuery(query string) (phrases []string, tokens []string) {
	remainder := query
	for _, m := range quotedPhraseRegex.FindAllStringSubmatch(query, -1) {
		phrases = append(phrases, m[1])
		remainder = strings.Replace(remainder, m[0], " ", 1)
	}

	for _, word := range strings.Fields(remainder) {
		for _, sub := range store.SplitCodeToken(word) {
			lower := strings.ToLower(sub)
			if len(lower) >= 3 {
				tokens = append(tokens, lower)
			}
		}
	}
	return phrases, tokens
}

// buildFTSQuery turns a raw query into the FTS5 match expression for
// lexical recall: phrases as quoted literals, tokens combined with
// OR, matching spec.md's "token queries combined with OR" + "phrase
// queries" requirements simultaneously.
func buildFTSQuery(query string) string {
	phrases, tokens := tokenizeLexicalQuery(query)
	if len(phrases) == 0 && len(tokens) == 0 {
		return ""
	}

	parts := make([]string, 0, len(phrases)+len(tokens))
	for _, p := range phrases {
		parts = append(parts, `"`+p+`"`)
	}
	parts = append(parts, tokens...)
	return strings.Join(parts, " OR ")
}

// Package tokenizer splits document text into the ordered token sequence
// highlight sessions are addressed by. The split is deterministic: the same
// text always yields the same tokens, so stored vote indices stay aligned
// with rendered markup.
package tokenizer

import (
	"html"
	"regexp"
	"strings"
)

var (
	separatorRE = regexp.MustCompile(`\s+|[.,:;!?()"'\-\[\]{}«»“”—–…]`)

	htmlBreakRE    = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlCloseRE    = regexp.MustCompile(`(?i)</(p|h1|h2|h3|h4|h5|h6|li|div|section|article|blockquote)>\s*`)
	htmlTagRE      = regexp.MustCompile(`(?is)<[^>]+>`)
	multiNewlineRE = regexp.MustCompile(`\n{3,}`)
)

var breakRunes = map[rune]bool{}

func init() {
	for _, r := range `.,:;!?()"'-[]{}«»“”—–…` {
		breakRunes[r] = true
	}
}

// HTMLToPlain converts HTML content to plain text while preserving
// structural breaks as newlines.
func HTMLToPlain(text string) string {
	if !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return html.UnescapeString(text)
	}
	text = htmlBreakRE.ReplaceAllString(text, "\n")
	text = htmlCloseRE.ReplaceAllString(text, "\n")
	text = htmlTagRE.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = multiNewlineRE.ReplaceAllString(text, "\n\n")
	return text
}

// Tokenize splits text into tokens. Words and punctuation become their own
// tokens; whitespace is dropped except newlines, which are emitted as
// explicit "\n" tokens so layout survives round trips.
func Tokenize(text string) []string {
	plain := HTMLToPlain(text)
	var tokens []string
	emit := func(seg string) {
		if seg == "" {
			return
		}
		if strings.TrimSpace(seg) == "" {
			for i := 0; i < strings.Count(seg, "\n"); i++ {
				tokens = append(tokens, "\n")
			}
			return
		}
		tokens = append(tokens, seg)
	}

	prev := 0
	for _, loc := range separatorRE.FindAllStringIndex(plain, -1) {
		if loc[0] > prev {
			emit(plain[prev:loc[0]])
		}
		emit(plain[loc[0]:loc[1]])
		prev = loc[1]
	}
	if prev < len(plain) {
		emit(plain[prev:])
	}
	return tokens
}

// IsBreak reports whether a token breaks highlight ranges: newlines and
// pure-punctuation tokens are hard boundaries a span cannot cross.
func IsBreak(token string) bool {
	switch token {
	case "\n", "\r", "\r\n":
		return true
	case "":
		return false
	}
	for _, r := range token {
		if !breakRunes[r] {
			return false
		}
	}
	return true
}

// Normalize joins tokens into lowercase text for phrase aggregation.
func Normalize(tokens []string) string {
	return strings.ToLower(strings.TrimSpace(strings.Join(tokens, " ")))
}

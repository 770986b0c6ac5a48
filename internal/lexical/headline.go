package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Headline window sizes, in words.
const (
	MaxHeadlineWords = 35
	headlineLead     = 10
)

// Headline returns a snippet of text around the first match with matched
// words wrapped in <b></b>. Trimmed ends are marked with "...".
func Headline(text string, q Query) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	want := map[string]bool{}
	for _, t := range q.Terms() {
		want[t] = true
	}

	first := -1
	marked := make([]string, len(words))
	for i, w := range words {
		marked[i] = w
		if highlight(w, want) {
			marked[i] = wrap(w)
			if first < 0 {
				first = i
			}
		}
	}

	start := 0
	if len(words) > MaxHeadlineWords && first > headlineLead {
		start = first - headlineLead
		if start+MaxHeadlineWords > len(words) {
			start = len(words) - MaxHeadlineWords
		}
	}
	end := start + MaxHeadlineWords
	if end > len(words) {
		end = len(words)
	}

	snippet := strings.Join(marked[start:end], " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(words) {
		snippet += "..."
	}
	return snippet
}

func highlight(word string, want map[string]bool) bool {
	for _, t := range Terms(word) {
		if want[t] {
			return true
		}
	}
	return false
}

// wrap highlights the alphanumeric core of word, leaving punctuation outside.
func wrap(word string) string {
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	lo := strings.IndexFunc(word, isWord)
	hi := strings.LastIndexFunc(word, isWord)
	if lo < 0 {
		return word
	}
	_, size := utf8.DecodeRuneInString(word[hi:])
	hi += size
	return word[:lo] + "<b>" + word[lo:hi] + "</b>" + word[hi:]
}

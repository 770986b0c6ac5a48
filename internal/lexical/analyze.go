package lexical

import (
	"strings"
	"unicode"
)

// Vector maps each normalised term to its 1-based token positions.
type Vector map[string][]int

// Len returns the number of distinct terms.
func (v Vector) Len() int {
	return len(v)
}

// Analyze builds the term vector of text. Empty or stop-word-only text
// yields an empty vector, which never matches a query.
func Analyze(text string) Vector {
	v := Vector{}
	for i, tok := range tokenize(text) {
		term, ok := normalize(tok)
		if !ok {
			continue
		}
		v[term] = append(v[term], i+1)
	}
	return v
}

// Terms returns the normalised terms of text in order, duplicates kept.
func Terms(text string) []string {
	var out []string
	for _, tok := range tokenize(text) {
		if term, ok := normalize(tok); ok {
			out = append(out, term)
		}
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize drops stop words and stems the rest.
func normalize(tok string) (string, bool) {
	if tok == "" || stopWords[tok] {
		return "", false
	}
	return stem(tok), true
}

// stem strips plural and -ed/-ing endings and folds a final y to i.
func stem(w string) string {
	if len(w) <= 3 || !isAlpha(w) {
		return w
	}

	switch {
	case strings.HasSuffix(w, "sses"):
		w = w[:len(w)-2]
	case strings.HasSuffix(w, "ies"):
		w = w[:len(w)-3] + "i"
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
	case strings.HasSuffix(w, "s"):
		w = w[:len(w)-1]
	}

	for _, suffix := range []string{"ing", "ed"} {
		if !strings.HasSuffix(w, suffix) {
			continue
		}
		base := w[:len(w)-len(suffix)]
		if len(base) < 3 || !hasVowel(base) {
			break
		}
		w = undouble(base)
		break
	}

	if n := len(w); n > 3 && w[n-1] == 'y' && strings.ContainsAny(w[:n-1], "aeiou") {
		w = w[:n-1] + "i"
	}
	return w
}

// undouble collapses a trailing double consonant left by -ed/-ing
// ("stopped" -> "stopp" -> "stop"). l, s and z are kept doubled.
func undouble(w string) string {
	n := len(w)
	if n < 2 || w[n-1] != w[n-2] {
		return w
	}
	switch w[n-1] {
	case 'l', 's', 'z', 'a', 'e', 'i', 'o', 'u':
		return w
	}
	return w[:n-1]
}

func hasVowel(w string) bool {
	return strings.ContainsAny(w, "aeiouy")
}

func isAlpha(w string) bool {
	for i := 0; i < len(w); i++ {
		if w[i] < 'a' || w[i] > 'z' {
			return false
		}
	}
	return true
}

var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"against": true, "all": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "as": true, "at": true, "be": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "but": true, "by": true, "can": true,
	"did": true, "do": true, "does": true, "doing": true, "down": true,
	"during": true, "each": true, "few": true, "for": true, "from": true,
	"further": true, "had": true, "has": true, "have": true, "having": true,
	"he": true, "her": true, "here": true, "hers": true, "herself": true,
	"him": true, "himself": true, "his": true, "how": true, "i": true,
	"if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "itself": true, "just": true, "me": true, "more": true,
	"most": true, "my": true, "myself": true, "no": true, "nor": true,
	"not": true, "now": true, "of": true, "off": true, "on": true,
	"once": true, "only": true, "or": true, "other": true, "our": true,
	"ours": true, "ourselves": true, "out": true, "over": true, "own": true,
	"s": true, "same": true, "she": true, "should": true, "so": true,
	"some": true, "such": true, "t": true, "than": true, "that": true,
	"the": true, "their": true, "theirs": true, "them": true, "themselves": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "through": true, "to": true, "too": true, "under": true,
	"until": true, "up": true, "very": true, "was": true, "we": true,
	"were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "whom": true, "why": true, "will": true,
	"with": true, "you": true, "your": true, "yours": true, "yourself": true,
	"yourselves": true,
}

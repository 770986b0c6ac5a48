package lexical

import (
	"sort"
	"strings"
)

// Query is a parsed search-box query: every group must be satisfied by at
// least one of its terms, and no excluded term may appear.
type Query struct {
	Groups  [][]string
	Exclude []string
}

// ParseQuery parses web-search syntax. Stop words are ignored, so a query
// made only of stop words has no groups.
func ParseQuery(s string) Query {
	var q Query
	pendingOr := false
	for _, word := range splitWords(s) {
		if strings.EqualFold(word, "or") {
			pendingOr = len(q.Groups) > 0
			continue
		}

		negate := false
		if len(word) > 1 && word[0] == '-' {
			negate = true
			word = word[1:]
		}

		terms := Terms(word)
		if len(terms) == 0 {
			pendingOr = false
			continue
		}

		switch {
		case negate:
			q.Exclude = append(q.Exclude, terms...)
		case pendingOr:
			last := len(q.Groups) - 1
			q.Groups[last] = appendUnique(q.Groups[last], terms...)
		default:
			for _, t := range terms {
				q.Groups = append(q.Groups, []string{t})
			}
		}
		pendingOr = false
	}
	return q
}

// splitWords splits on whitespace, keeping quoted runs together.
func splitWords(s string) []string {
	var words []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			flush()
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}

func appendUnique(dst []string, terms ...string) []string {
	for _, t := range terms {
		found := false
		for _, d := range dst {
			if d == t {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, t)
		}
	}
	return dst
}

// Empty reports whether the query has no positive terms.
// An empty query matches nothing.
func (q Query) Empty() bool {
	return len(q.Groups) == 0
}

// Terms returns the distinct positive terms, sorted.
func (q Query) Terms() []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range q.Groups {
		for _, t := range g {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Matches reports whether v satisfies the query.
func (q Query) Matches(v Vector) bool {
	if q.Empty() || len(v) == 0 {
		return false
	}
	for _, t := range q.Exclude {
		if _, ok := v[t]; ok {
			return false
		}
	}
	for _, g := range q.Groups {
		hit := false
		for _, t := range g {
			if _, ok := v[t]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Rank scores v against the query. The score is
//
//	weight * coverage * tf/(tf+1)
//
// where coverage is the share of distinct positive terms present in v and
// tf is the total number of their occurrences. Non-matching vectors score 0.
// Scores are always below weight.
func Rank(v Vector, weight float64, q Query) float64 {
	if !q.Matches(v) {
		return 0
	}
	terms := q.Terms()
	matched, tf := 0, 0
	for _, t := range terms {
		if pos, ok := v[t]; ok {
			matched++
			tf += len(pos)
		}
	}
	coverage := float64(matched) / float64(len(terms))
	return weight * coverage * float64(tf) / float64(tf+1)
}

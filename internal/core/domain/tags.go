package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// TagIndexEntry is the derived tag map of one document.
// A document without tag attachments has no entry.
type TagIndexEntry struct {
	DocumentID    int64
	TenantID      *string
	Tags          map[string]string
	TagsCreatedAt time.Time
	TagsUpdatedAt time.Time
}

// Contains reports whether the entry's tags include every pair in filter.
func (e TagIndexEntry) Contains(filter TagFilter) bool {
	for k, v := range filter {
		got, ok := e.Tags[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// sameAs reports whether two entries carry the same tenant and tags.
func (e TagIndexEntry) sameAs(o TagIndexEntry) bool {
	return StringValue(e.TenantID) == StringValue(o.TenantID) &&
		(e.TenantID == nil) == (o.TenantID == nil) &&
		maps.Equal(e.Tags, o.Tags)
}

// TagFilter is a set of key/value pairs that must all be present.
type TagFilter map[string]string

// ParseTagFilter converts a decoded JSON value into a TagFilter.
// Nil yields an empty filter. Anything other than an object with string
// values is rejected.
func ParseTagFilter(v any) (TagFilter, error) {
	switch f := v.(type) {
	case nil:
		return TagFilter{}, nil
	case TagFilter:
		return f, nil
	case map[string]string:
		return TagFilter(f), nil
	case map[string]any:
		out := make(TagFilter, len(f))
		for k, raw := range f {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: value for %q is not a string", ErrInvalidTagFilter, k)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, ErrInvalidTagFilter
	}
}

// ParseTagBody decodes a tag attachment body into key/value pairs.
// Tokens are split on the first ':'; tokens without one, non-string
// elements and empty keys are skipped. Later tokens win. An error is
// returned only when the body is not a JSON array.
func ParseTagBody(body string) (map[string]string, error) {
	var items []any
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("tag body is not a JSON array: %w", err)
	}
	tags := make(map[string]string, len(items))
	for _, item := range items {
		token, ok := item.(string)
		if !ok {
			continue
		}
		key, value, found := strings.Cut(token, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		tags[key] = strings.TrimSpace(value)
	}
	return tags, nil
}

// TagSnapshot is an immutable view of the tag index. Readers hold a
// snapshot for the duration of a query; refreshes publish a new one.
type TagSnapshot struct {
	entries     map[int64]TagIndexEntry
	refreshedAt time.Time
}

// NewTagSnapshot builds a snapshot from entries. The slice is copied.
func NewTagSnapshot(entries []TagIndexEntry, refreshedAt time.Time) *TagSnapshot {
	m := make(map[int64]TagIndexEntry, len(entries))
	for _, e := range entries {
		m[e.DocumentID] = e
	}
	return &TagSnapshot{entries: m, refreshedAt: refreshedAt}
}

// EmptyTagSnapshot returns a snapshot with no entries.
func EmptyTagSnapshot() *TagSnapshot {
	return &TagSnapshot{entries: map[int64]TagIndexEntry{}}
}

// Len returns the number of entries.
func (s *TagSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// RefreshedAt returns when the snapshot was built.
func (s *TagSnapshot) RefreshedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.refreshedAt
}

// Get returns the entry for a document.
func (s *TagSnapshot) Get(documentID int64) (TagIndexEntry, bool) {
	if s == nil {
		return TagIndexEntry{}, false
	}
	e, ok := s.entries[documentID]
	return e, ok
}

// Allows reports whether a document passes the tag filter. An empty
// filter allows every document, including those without an entry.
func (s *TagSnapshot) Allows(documentID int64, filter TagFilter) bool {
	if len(filter) == 0 {
		return true
	}
	e, ok := s.Get(documentID)
	return ok && e.Contains(filter)
}

// Entries returns all entries ordered by TagsUpdatedAt descending, then
// document ID ascending.
func (s *TagSnapshot) Entries() []TagIndexEntry {
	if s == nil {
		return nil
	}
	out := make([]TagIndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TagsUpdatedAt.Equal(out[j].TagsUpdatedAt) {
			return out[i].TagsUpdatedAt.After(out[j].TagsUpdatedAt)
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

// Without returns a copy of the snapshot minus the given document.
func (s *TagSnapshot) Without(documentID int64) *TagSnapshot {
	if _, ok := s.Get(documentID); !ok {
		return s
	}
	m := make(map[int64]TagIndexEntry, len(s.entries))
	for id, e := range s.entries {
		if id != documentID {
			m[id] = e
		}
	}
	return &TagSnapshot{entries: m, refreshedAt: s.refreshedAt}
}

// WithTenant returns a copy of the snapshot with the document's tenant replaced.
func (s *TagSnapshot) WithTenant(documentID int64, tenantID *string) *TagSnapshot {
	if _, ok := s.Get(documentID); !ok {
		return s
	}
	m := maps.Clone(s.entries)
	e := m[documentID]
	e.TenantID = tenantID
	m[documentID] = e
	return &TagSnapshot{entries: m, refreshedAt: s.refreshedAt}
}

// TagIndexDiff is the set of changes that turns one tag index into another.
type TagIndexDiff struct {
	Upserts []TagIndexEntry
	Deletes []int64
}

// Size is the number of rows the diff touches.
func (d TagIndexDiff) Size() int {
	return len(d.Upserts) + len(d.Deletes)
}

// DiffTagIndex compares the current index with freshly aggregated tags.
// Unchanged entries are left alone, changed entries keep their creation
// time and get updatedAt, new entries get now for both timestamps.
func DiffTagIndex(current []TagIndexEntry, next []TagIndexEntry, now time.Time) TagIndexDiff {
	byID := make(map[int64]TagIndexEntry, len(current))
	for _, e := range current {
		byID[e.DocumentID] = e
	}

	var diff TagIndexDiff
	seen := make(map[int64]bool, len(next))
	for _, n := range next {
		seen[n.DocumentID] = true
		old, ok := byID[n.DocumentID]
		switch {
		case !ok:
			n.TagsCreatedAt = now
			n.TagsUpdatedAt = now
			diff.Upserts = append(diff.Upserts, n)
		case !old.sameAs(n):
			n.TagsCreatedAt = old.TagsCreatedAt
			n.TagsUpdatedAt = now
			diff.Upserts = append(diff.Upserts, n)
		}
	}
	for _, e := range current {
		if !seen[e.DocumentID] {
			diff.Deletes = append(diff.Deletes, e.DocumentID)
		}
	}
	sort.Slice(diff.Upserts, func(i, j int) bool { return diff.Upserts[i].DocumentID < diff.Upserts[j].DocumentID })
	sort.Slice(diff.Deletes, func(i, j int) bool { return diff.Deletes[i] < diff.Deletes[j] })
	return diff
}

// Apply returns the entries that result from applying the diff to current.
func (d TagIndexDiff) Apply(current []TagIndexEntry) []TagIndexEntry {
	m := make(map[int64]TagIndexEntry, len(current)+len(d.Upserts))
	for _, e := range current {
		m[e.DocumentID] = e
	}
	for _, id := range d.Deletes {
		delete(m, id)
	}
	for _, e := range d.Upserts {
		m[e.DocumentID] = e
	}
	out := make([]TagIndexEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// RefreshResult reports the outcome of a tag index refresh.
type RefreshResult struct {
	RefreshedAt  time.Time
	RowsAffected int
}

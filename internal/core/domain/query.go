package domain

import (
	"sort"
	"strings"
)

// Filters are metadata equality predicates applied to retrieval.
// A chunk matches when every key is present in its metadata with an
// equal value. Filters are applied before ranking, not after, so the
// top-k candidates are always drawn from the filtered population.
type Filters map[string]string

// Match reports whether the chunk metadata satisfies every predicate.
func (f Filters) Match(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// Canonical returns an order-independent string form of the filter set,
// suitable for use in cache keys.
func (f Filters) Canonical() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f[k])
	}
	return b.String()
}

// NormaliseQuestion canonicalises question text for cache keying:
// lowercased, whitespace collapsed, trailing punctuation trimmed.
func NormaliseQuestion(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	q = strings.Join(strings.Fields(q), " ")
	return strings.TrimRight(q, "?!. ")
}

package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HighSentinel is the last code point of the BMP private use area. Stores
// that only support ordered bounds, like Firestore, scan [term,
// term+HighSentinel). Values continuing with a code point above U+F8FF sort
// past that bound and are missed there; the in-memory store matches by
// prefix instead.
const HighSentinel = "\uf8ff"

// Normalize case-folds a query fragment or a field value. The data producer
// and the search engine must use the same transform.
func Normalize(s string) string {
	// A Caser keeps state and is not safe for concurrent use.
	return cases.Lower(language.Und).String(s)
}

// PrefixRange returns the half-open bounds of a prefix scan for term.
func PrefixRange(term string) (lower, upper string) {
	return term, term + HighSentinel
}

// PrefixOf returns the term of bounds built by PrefixRange
func PrefixOf(lower, upper string) (string, bool) {
	return lower, upper == lower+HighSentinel
}

// Matcher returns the membership test for [lower, upper). Bounds built by
// PrefixRange match every value starting with the term.
func Matcher(lower, upper string) func(string) bool {
	if term, ok := PrefixOf(lower, upper); ok {
		return func(v string) bool { return strings.HasPrefix(v, term) }
	}
	return func(v string) bool { return InRange(v, lower, upper) }
}

// InRange reports whether v lies in [lower, upper)
func InRange(v, lower, upper string) bool {
	return v >= lower && v < upper
}

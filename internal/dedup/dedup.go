// Package dedup collapses postings that appear under several sources.
//
// A posting is represented by up to three keys: its URL without the query
// string, title+company, and title+location. A posting whose keys intersect the
// keys already seen is dropped; otherwise all of its keys are recorded. The
// first occurrence always wins and later duplicates are never merged into it.
package dedup

import (
	"strings"

	"github.com/JakeFAU/job-aggregator/internal/job"
)

// Keys returns the dedup keys for p. Keys whose inputs are empty are omitted.
func Keys(p job.Posting) []string {
	keys := make([]string, 0, 3)
	if u := urlKey(p.URL); u != "" {
		keys = append(keys, u)
	}
	title := fold(p.Title)
	if title == "" {
		return keys
	}
	if company := fold(p.Company); company != "" {
		keys = append(keys, title+"_"+company)
	}
	if location := fold(p.Location); location != "" {
		keys = append(keys, title+"_"+location)
	}
	return keys
}

// Set tracks seen keys across calls.
type Set struct {
	seen map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add records p's keys and reports whether p is new. A posting with no keys
// at all is always kept.
func (s *Set) Add(p job.Posting) bool {
	keys := Keys(p)
	for _, k := range keys {
		if _, ok := s.seen[k]; ok {
			return false
		}
	}
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
	return true
}

// Dedupe returns postings with duplicates removed, preserving first-seen order.
// The input slice is not modified.
func Dedupe(postings []job.Posting) []job.Posting {
	set := NewSet()
	out := make([]job.Posting, 0, len(postings))
	for _, p := range postings {
		if set.Add(p) {
			out = append(out, p)
		}
	}
	return out
}

func urlKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(raw)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

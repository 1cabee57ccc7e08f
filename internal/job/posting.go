// Package job defines the canonical job posting record every source produces.
package job

import (
	"strings"
	"time"
)

// Sentinel values used when a source omits a title or company. Dedup keys are
// built from these fields, so they are never left empty.
const (
	UntitledTitle  = "Untitled"
	UnknownCompany = "Unknown Company"
)

// Posting is one normalized job or internship listing.
type Posting struct {
	Title               string    `json:"title"`
	Company             string    `json:"company"`
	Location            string    `json:"location"`
	Type                string    `json:"type"`
	Description         string    `json:"description"`
	Requirements        []string  `json:"requirements"`
	Salary              string    `json:"salary,omitempty"`
	Skills              []string  `json:"skills"`
	URL                 string    `json:"url"`
	Source              string    `json:"source"`
	PostedDate          time.Time `json:"postedDate"`
	ScrapedAt           time.Time `json:"scrapedAt"`
	IsRemote            bool      `json:"isRemote"`
	IsLocalToTargetCity bool      `json:"isLocalToTargetCity"`
}

// Normalize fills the invariants of a Posting: sentinel title and company,
// source name, fetch timestamp, posted date defaulting to the fetch time, and
// non-nil slices. Text fields are trimmed.
func Normalize(p Posting, source string, now time.Time) Posting {
	p.Title = strings.TrimSpace(p.Title)
	p.Company = strings.TrimSpace(p.Company)
	p.Location = strings.TrimSpace(p.Location)
	p.Type = strings.TrimSpace(p.Type)
	p.Salary = strings.TrimSpace(p.Salary)
	p.URL = strings.TrimSpace(p.URL)
	if p.Title == "" {
		p.Title = UntitledTitle
	}
	if p.Company == "" {
		p.Company = UnknownCompany
	}
	if p.Source == "" {
		p.Source = source
	}
	now = now.UTC()
	if p.ScrapedAt.IsZero() {
		p.ScrapedAt = now
	}
	if p.PostedDate.IsZero() {
		p.PostedDate = p.ScrapedAt
	}
	p.Requirements = compact(p.Requirements)
	p.Skills = compact(p.Skills)
	return p
}

// NormalizeAll applies Normalize to every posting in place and returns the slice.
func NormalizeAll(postings []Posting, source string, now time.Time) []Posting {
	for i := range postings {
		postings[i] = Normalize(postings[i], source, now)
	}
	return postings
}

// ContainsFold reports whether needle appears in haystack, ignoring case.
// An empty needle never matches.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// LocalTo reports whether location mentions city.
func LocalTo(location, city string) bool {
	return ContainsFold(location, strings.TrimSpace(city))
}

// ParseTime accepts the timestamp layouts providers send and returns the zero
// time when none match, so Normalize can fall back to the fetch time.
func ParseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnixMillis converts a millisecond epoch into UTC, returning zero for non-positive input.
func UnixMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-aggregator/internal/job"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   job.Posting
		want []string
	}{
		{
			name: "all keys",
			in: job.Posting{
				Title:    " Backend Engineer ",
				Company:  "Acme",
				Location: "Hyderabad",
				URL:      "https://Jobs.Example.com/123?utm=feed",
			},
			want: []string{
				"https://jobs.example.com/123",
				"backend engineer_acme",
				"backend engineer_hyderabad",
			},
		},
		{
			name: "no url",
			in:   job.Posting{Title: "Dev", Company: "Acme", Location: "Remote"},
			want: []string{"dev_acme", "dev_remote"},
		},
		{
			name: "empty location omitted",
			in:   job.Posting{Title: "Dev", Company: "Acme", Location: "  "},
			want: []string{"dev_acme"},
		},
		{
			name: "url only",
			in:   job.Posting{URL: "https://x.test/a"},
			want: []string{"https://x.test/a"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Keys(tc.in))
		})
	}
}

func TestDedupeSameTitleCompanyKeepsFirst(t *testing.T) {
	t.Parallel()

	in := []job.Posting{
		{Title: "Backend Engineer", Company: "Acme", Location: "Hyderabad", Source: "Adzuna"},
		{Title: "Backend Engineer", Company: "Acme", Location: "Pune", Source: "Lever"},
	}
	out := Dedupe(in)
	require.Len(t, out, 1)
	require.Equal(t, "Adzuna", out[0].Source)
}

func TestDedupeURLIgnoresQueryString(t *testing.T) {
	t.Parallel()

	in := []job.Posting{
		{Title: "A", Company: "X", URL: "https://example.com/job/1?ref=a"},
		{Title: "B", Company: "Y", URL: "https://EXAMPLE.com/job/1?ref=b"},
		{Title: "C", Company: "Z", URL: "https://example.com/job/2"},
	}
	out := Dedupe(in)
	require.Len(t, out, 2)
	require.Equal(t, "A", out[0].Title)
	require.Equal(t, "C", out[1].Title)
}

func TestDedupeCrossKeyCollision(t *testing.T) {
	t.Parallel()

	// The second posting's title+company equals the first one's title+location.
	in := []job.Posting{
		{Title: "Dev", Company: "Acme", Location: "Remote"},
		{Title: "Dev", Company: "Remote", Location: "Berlin"},
	}
	require.Len(t, Dedupe(in), 1)
}

func TestDedupeIdempotentAndOrderPreserving(t *testing.T) {
	t.Parallel()

	in := []job.Posting{
		{Title: "Go Dev", Company: "A", Location: "Remote", URL: "https://a.test/1"},
		{Title: "Rust Dev", Company: "B", Location: "Remote", URL: "https://b.test/1"},
		{Title: "go dev", Company: "a", Location: "Berlin"},
		{Title: "Python Dev", Company: "C", Location: "Pune"},
		{Title: "Rust Dev", Company: "D", Location: "remote"},
	}
	once := Dedupe(in)
	require.Equal(t, []string{"Go Dev", "Rust Dev", "Python Dev"}, titles(once))
	require.Equal(t, once, Dedupe(once))
}

func TestDedupeKeepsKeylessPostings(t *testing.T) {
	t.Parallel()

	out := Dedupe([]job.Posting{{}, {}})
	require.Len(t, out, 2)
}

func titles(ps []job.Posting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Title)
	}
	return out
}

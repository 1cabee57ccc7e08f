package source

import (
	"context"
	"fmt"
	"net/http"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// RemoteOKName is the source label on RemoteOK postings.
const RemoteOKName = "RemoteOK"

// RemoteOK reads the RemoteOK public feed and filters it by title.
type RemoteOK struct {
	opts Options
}

// NewRemoteOK builds the RemoteOK adapter.
func NewRemoteOK(opts Options) *RemoteOK {
	return &RemoteOK{opts: opts}
}

// Descriptor implements Adapter.
func (r *RemoteOK) Descriptor() Descriptor {
	return Descriptor{Name: RemoteOKName, Transport: TransportDirect, Stage: StageModern}
}

type remoteOKJob struct {
	ID          flexString `json:"id"`
	Position    string     `json:"position"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	SalaryMin   flexFloat  `json:"salary_min"`
	SalaryMax   flexFloat  `json:"salary_max"`
	Date        string     `json:"date"`
}

// Search implements Adapter.
func (r *RemoteOK) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	var feed []remoteOKJob
	err := getJSON(ctx, r.opts.Client, r.opts.timeout(), collyfetcher.Request{
		URL:     "https://remoteok.com/api",
		Headers: http.Header{"User-Agent": {r.opts.userAgent()}},
	}, &feed)
	if err != nil {
		return nil, fmt.Errorf("remoteok feed: %w", err)
	}
	// The first element is a legal notice, not a job.
	if len(feed) > 0 {
		feed = feed[1:]
	}

	postings := make([]job.Posting, 0)
	for _, j := range feed {
		if req.MaxResults > 0 && len(postings) >= req.MaxResults {
			break
		}
		if !matchesQuery(j.Position, req.Query) {
			continue
		}
		p := job.Posting{
			Title:        j.Position,
			Company:      j.Company,
			Location:     firstNonEmpty(j.Location, remoteLocation),
			Type:         fullTime,
			Description:  j.Description,
			Requirements: j.Tags,
			Skills:       j.Tags,
			URL:          "https://remoteok.com/remote-jobs/" + string(j.ID),
			PostedDate:   job.ParseTime(j.Date),
			IsRemote:     true,
		}
		if j.SalaryMin != 0 && j.SalaryMax != 0 {
			p.Salary = fmt.Sprintf("$%s - $%s", formatNumber(float64(j.SalaryMin)), formatNumber(float64(j.SalaryMax)))
		}
		postings = append(postings, p)
	}
	return postings, nil
}

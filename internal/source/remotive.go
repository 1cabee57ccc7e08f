package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// RemotiveName is the source label on Remotive postings.
const RemotiveName = "Remotive (Remote Jobs)"

// Remotive queries the public Remotive remote-jobs API.
type Remotive struct {
	opts Options
}

// NewRemotive builds the Remotive adapter.
func NewRemotive(opts Options) *Remotive {
	return &Remotive{opts: opts}
}

// Descriptor implements Adapter.
func (r *Remotive) Descriptor() Descriptor {
	return Descriptor{Name: RemotiveName, Transport: TransportDirect, Stage: StageAPI}
}

type remotiveResponse struct {
	Jobs []struct {
		Title           string   `json:"title"`
		CompanyName     string   `json:"company_name"`
		JobType         string   `json:"job_type"`
		Description     string   `json:"description"`
		Salary          string   `json:"salary"`
		Tags            []string `json:"tags"`
		URL             string   `json:"url"`
		PublicationDate string   `json:"publication_date"`
	} `json:"jobs"`
}

// Search implements Adapter.
func (r *Remotive) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	var resp remotiveResponse
	err := getJSON(ctx, r.opts.Client, r.opts.timeout(), collyfetcher.Request{
		URL: "https://remotive.io/api/remote-jobs",
		Query: url.Values{
			"search": {req.Query},
			"limit":  {strconv.Itoa(req.MaxResults)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("remotive search: %w", err)
	}

	jobs := resp.Jobs
	if req.MaxResults > 0 && len(jobs) > req.MaxResults {
		jobs = jobs[:req.MaxResults]
	}
	postings := make([]job.Posting, 0, len(jobs))
	for _, j := range jobs {
		postings = append(postings, job.Posting{
			Title:       j.Title,
			Company:     j.CompanyName,
			Location:    remoteLocation,
			Type:        firstNonEmpty(strings.ToLower(j.JobType), fullTime),
			Description: j.Description,
			Salary:      j.Salary,
			Skills:      j.Tags,
			URL:         j.URL,
			PostedDate:  job.ParseTime(j.PublicationDate),
			IsRemote:    true,
		})
	}
	return postings, nil
}

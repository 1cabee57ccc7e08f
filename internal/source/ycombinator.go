package source

import (
	"context"
	"encoding/json"
	"fmt"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// YCombinatorName is the source label on Y Combinator postings.
const YCombinatorName = "Y Combinator"

// YCombinator reads the Work at a Startup jobs feed.
type YCombinator struct {
	opts Options
}

// NewYCombinator builds the Y Combinator adapter.
func NewYCombinator(opts Options) *YCombinator {
	return &YCombinator{opts: opts}
}

// Descriptor implements Adapter.
func (y *YCombinator) Descriptor() Descriptor {
	return Descriptor{Name: YCombinatorName, Transport: TransportDirect, Stage: StageModern}
}

type ycJob struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	CompanyName string     `json:"company_name"`
	Location    string     `json:"location"`
	JobType     string     `json:"job_type"`
	Description string     `json:"description"`
	Salary      string     `json:"salary"`
	Skills      []string   `json:"skills"`
	URL         string     `json:"url"`
	PostedAt    string     `json:"posted_at"`
}

// decodeYCFeed accepts a bare array or an object wrapping it in "jobs".
func decodeYCFeed(raw json.RawMessage) ([]ycJob, error) {
	var list []ycJob
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Jobs []ycJob `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode yc feed: %w", err)
	}
	return wrapped.Jobs, nil
}

// Search implements Adapter.
func (y *YCombinator) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	var raw json.RawMessage
	err := getJSON(ctx, y.opts.Client, y.opts.timeout(), collyfetcher.Request{
		URL: "https://www.ycombinator.com/jobs/api",
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("ycombinator feed: %w", err)
	}
	feed, err := decodeYCFeed(raw)
	if err != nil {
		return nil, err
	}

	postings := make([]job.Posting, 0)
	for _, j := range feed {
		if req.MaxResults > 0 && len(postings) >= req.MaxResults {
			break
		}
		if !matchesQuery(j.Title, req.Query) {
			continue
		}
		postings = append(postings, job.Posting{
			Title:               j.Title,
			Company:             firstNonEmpty(j.CompanyName, "YC Company"),
			Location:            firstNonEmpty(j.Location, remoteLocation),
			Type:                firstNonEmpty(j.JobType, fullTime),
			Description:         j.Description,
			Salary:              j.Salary,
			Skills:              j.Skills,
			URL:                 firstNonEmpty(j.URL, "https://www.ycombinator.com/jobs/"+string(j.ID)),
			PostedDate:          job.ParseTime(j.PostedAt),
			IsRemote:            isRemote(j.Location),
			IsLocalToTargetCity: job.LocalTo(j.Location, y.opts.City),
		})
	}
	return postings, nil
}

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

// SerpAPIName is the source label on Google Jobs postings.
const SerpAPIName = "SerpAPI (Google Jobs)"

// SerpAPI queries Google Jobs through SerpAPI.
type SerpAPI struct {
	key  string
	opts Options
}

// NewSerpAPI builds the SerpAPI adapter.
func NewSerpAPI(key string, opts Options) *SerpAPI {
	return &SerpAPI{key: key, opts: opts}
}

// Descriptor implements Adapter.
func (s *SerpAPI) Descriptor() Descriptor {
	return Descriptor{Name: SerpAPIName, Transport: TransportDirect, Stage: StageAPI}
}

type serpResponse struct {
	JobsResults []struct {
		Title        string `json:"title"`
		CompanyName  string `json:"company_name"`
		Location     string `json:"location"`
		Description  string `json:"description"`
		RelatedLinks []struct {
			Text string `json:"text"`
		} `json:"related_links"`
		DetectedExtensions struct {
			Salary   string `json:"salary"`
			PostedAt string `json:"posted_at"`
		} `json:"detected_extensions"`
		ShareURL     string `json:"share_url"`
		ApplyOptions []struct {
			Link string `json:"link"`
		} `json:"apply_options"`
	} `json:"jobs_results"`
}

// Search implements Adapter.
func (s *SerpAPI) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	if s.key == "" {
		return nil, fmt.Errorf("serpapi key: %w", ErrMissingCredential)
	}
	var resp serpResponse
	err := getJSON(ctx, s.opts.Client, s.opts.timeout(), collyfetcher.Request{
		URL: "https://serpapi.com/search",
		Query: url.Values{
			"engine":  {"google_jobs"},
			"q":       {strings.TrimSpace(req.Query + " " + req.Location)},
			"api_key": {s.key},
			"num":     {strconv.Itoa(req.MaxResults)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("serpapi search: %w", err)
	}

	postings := make([]job.Posting, 0, len(resp.JobsResults))
	for _, r := range resp.JobsResults {
		requirements := make([]string, 0, len(r.RelatedLinks))
		for _, link := range r.RelatedLinks {
			requirements = append(requirements, link.Text)
		}
		applyLink := ""
		if len(r.ApplyOptions) > 0 {
			applyLink = r.ApplyOptions[0].Link
		}
		postings = append(postings, job.Posting{
			Title:               r.Title,
			Company:             r.CompanyName,
			Location:            firstNonEmpty(r.Location, defaultLocation),
			Type:                fullTime,
			Description:         r.Description,
			Requirements:        requirements,
			Salary:              r.DetectedExtensions.Salary,
			URL:                 firstNonEmpty(r.ShareURL, applyLink),
			PostedDate:          job.ParseTime(r.DetectedExtensions.PostedAt),
			IsRemote:            isRemote(r.Title) || isRemote(r.Description),
			IsLocalToTargetCity: job.LocalTo(r.Location, s.opts.City),
		})
	}
	return postings, nil
}

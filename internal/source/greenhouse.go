package source

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/extract"
	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// GreenhouseName is the source label on Greenhouse postings.
const GreenhouseName = "Greenhouse"

// Greenhouse polls public Greenhouse job boards for a fixed set of companies.
type Greenhouse struct {
	companies []string
	opts      Options
}

// NewGreenhouse builds the Greenhouse adapter.
func NewGreenhouse(companies []string, opts Options) *Greenhouse {
	return &Greenhouse{companies: companiesOrDefault(companies), opts: opts}
}

// Descriptor implements Adapter.
func (g *Greenhouse) Descriptor() Descriptor {
	return Descriptor{Name: GreenhouseName, Transport: TransportDirect, Stage: StageModern}
}

type greenhouseBoard struct {
	Jobs []struct {
		Title    string `json:"title"`
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
		Content     string `json:"content"`
		Departments []struct {
			Name string `json:"name"`
		} `json:"departments"`
		AbsoluteURL string `json:"absolute_url"`
		UpdatedAt   string `json:"updated_at"`
	} `json:"jobs"`
}

// Search implements Adapter.
func (g *Greenhouse) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	logger := g.opts.logger().With(zap.String("source", GreenhouseName))
	return fanOutCompanies(ctx, g.companies, req.MaxResults, logger, func(ctx context.Context, company string) ([]job.Posting, error) {
		return g.company(ctx, company, req)
	}), nil
}

func (g *Greenhouse) company(ctx context.Context, company string, req Request) ([]job.Posting, error) {
	var board greenhouseBoard
	err := getJSON(ctx, g.opts.Client, g.opts.companyTimeout(), collyfetcher.Request{
		URL:   fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs", url.PathEscape(company)),
		Query: url.Values{"content": {"true"}},
	}, &board)
	if err != nil {
		return nil, fmt.Errorf("greenhouse %s: %w", company, err)
	}

	postings := make([]job.Posting, 0)
	for _, j := range board.Jobs {
		if !matchesQuery(j.Title, req.Query) {
			continue
		}
		skills := make([]string, 0, len(j.Departments))
		for _, d := range j.Departments {
			skills = append(skills, d.Name)
		}
		loc := j.Location.Name
		postings = append(postings, job.Posting{
			Title:               j.Title,
			Company:             company,
			Location:            firstNonEmpty(loc, remoteLocation),
			Type:                fullTime,
			Description:         extract.HTMLText(j.Content),
			Skills:              skills,
			URL:                 j.AbsoluteURL,
			PostedDate:          job.ParseTime(j.UpdatedAt),
			IsRemote:            isRemote(loc),
			IsLocalToTargetCity: job.LocalTo(loc, g.opts.City),
		})
	}
	return postings, nil
}

package source

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// LeverName is the source label on Lever postings.
const LeverName = "Lever"

// Lever polls public Lever job boards for a fixed set of companies.
type Lever struct {
	companies []string
	opts      Options
}

// NewLever builds the Lever adapter.
func NewLever(companies []string, opts Options) *Lever {
	return &Lever{companies: companiesOrDefault(companies), opts: opts}
}

// Descriptor implements Adapter.
func (l *Lever) Descriptor() Descriptor {
	return Descriptor{Name: LeverName, Transport: TransportDirect, Stage: StageModern}
}

type leverPosting struct {
	Text          string `json:"text"`
	WorkplaceType string `json:"workplaceType"`
	Categories    struct {
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
		Team       string `json:"team"`
	} `json:"categories"`
	Description string `json:"description"`
	Lists       []struct {
		Content string `json:"content"`
	} `json:"lists"`
	HostedURL string `json:"hostedUrl"`
	ApplyURL  string `json:"applyUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// Search implements Adapter.
func (l *Lever) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	logger := l.opts.logger().With(zap.String("source", LeverName))
	return fanOutCompanies(ctx, l.companies, req.MaxResults, logger, func(ctx context.Context, company string) ([]job.Posting, error) {
		return l.company(ctx, company, req)
	}), nil
}

func (l *Lever) company(ctx context.Context, company string, req Request) ([]job.Posting, error) {
	var board []leverPosting
	err := getJSON(ctx, l.opts.Client, l.opts.companyTimeout(), collyfetcher.Request{
		URL:   "https://api.lever.co/v0/postings/" + url.PathEscape(company),
		Query: url.Values{"mode": {"json"}},
	}, &board)
	if err != nil {
		return nil, fmt.Errorf("lever %s: %w", company, err)
	}

	postings := make([]job.Posting, 0)
	for _, j := range board {
		if !matchesQuery(j.Text, req.Query) {
			continue
		}
		requirements := make([]string, 0, len(j.Lists))
		for _, list := range j.Lists {
			requirements = append(requirements, list.Content)
		}
		p := job.Posting{
			Title:               j.Text,
			Company:             company,
			Location:            firstNonEmpty(j.Categories.Location, j.WorkplaceType, remoteLocation),
			Type:                firstNonEmpty(j.Categories.Commitment, fullTime),
			Description:         j.Description,
			Requirements:        requirements,
			URL:                 firstNonEmpty(j.HostedURL, j.ApplyURL),
			PostedDate:          job.UnixMillis(j.CreatedAt),
			IsRemote:            isRemote(j.WorkplaceType),
			IsLocalToTargetCity: job.LocalTo(j.Categories.Location, l.opts.City),
		}
		if j.Categories.Team != "" {
			p.Skills = []string{j.Categories.Team}
		}
		postings = append(postings, p)
	}
	return postings, nil
}

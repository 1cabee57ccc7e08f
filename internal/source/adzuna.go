package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// AdzunaName is the source label on Adzuna postings.
const AdzunaName = "Adzuna"

// AdzunaConfig holds Adzuna API credentials.
type AdzunaConfig struct {
	AppID   string
	AppKey  string
	Country string
}

// Adzuna queries the Adzuna job search API.
type Adzuna struct {
	cfg  AdzunaConfig
	opts Options
}

// NewAdzuna builds the Adzuna adapter.
func NewAdzuna(cfg AdzunaConfig, opts Options) *Adzuna {
	if cfg.Country == "" {
		cfg.Country = "in"
	}
	return &Adzuna{cfg: cfg, opts: opts}
}

// Descriptor implements Adapter.
func (a *Adzuna) Descriptor() Descriptor {
	return Descriptor{Name: AdzunaName, Transport: TransportDirect, Stage: StageAPI}
}

type adzunaResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Company struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
		Location struct {
			DisplayName string `json:"display_name"`
		} `json:"location"`
		ContractType string    `json:"contract_type"`
		Description  string    `json:"description"`
		SalaryMin    flexFloat `json:"salary_min"`
		SalaryMax    flexFloat `json:"salary_max"`
		Category     struct {
			Label string `json:"label"`
		} `json:"category"`
		RedirectURL string `json:"redirect_url"`
		Created     string `json:"created"`
	} `json:"results"`
}

// Search implements Adapter.
func (a *Adzuna) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	if a.cfg.AppID == "" || a.cfg.AppKey == "" {
		return nil, fmt.Errorf("adzuna app_id/app_key: %w", ErrMissingCredential)
	}
	var resp adzunaResponse
	err := getJSON(ctx, a.opts.Client, a.opts.timeout(), collyfetcher.Request{
		URL: fmt.Sprintf("https://api.adzuna.com/v1/api/jobs/%s/search/1", url.PathEscape(a.cfg.Country)),
		Query: url.Values{
			"app_id":           {a.cfg.AppID},
			"app_key":          {a.cfg.AppKey},
			"results_per_page": {strconv.Itoa(req.MaxResults)},
			"what":             {req.Query},
			"where":            {req.Location},
			"content_type":     {"json"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}

	postings := make([]job.Posting, 0, len(resp.Results))
	for _, r := range resp.Results {
		loc := r.Location.DisplayName
		p := job.Posting{
			Title:               r.Title,
			Company:             r.Company.DisplayName,
			Location:            firstNonEmpty(loc, defaultLocation),
			Type:                firstNonEmpty(r.ContractType, fullTime),
			Description:         r.Description,
			URL:                 r.RedirectURL,
			PostedDate:          job.ParseTime(r.Created),
			IsRemote:            isRemote(loc),
			IsLocalToTargetCity: job.LocalTo(loc, a.opts.City),
		}
		if r.SalaryMin != 0 && r.SalaryMax != 0 {
			p.Salary = fmt.Sprintf("₹%s - ₹%s/year", formatNumber(float64(r.SalaryMin)), formatNumber(float64(r.SalaryMax)))
		}
		if r.Category.Label != "" {
			p.Skills = []string{r.Category.Label}
		}
		postings = append(postings, p)
	}
	return postings, nil
}

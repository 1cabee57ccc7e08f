package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// JSearchName is the source label on RapidAPI JSearch postings.
const JSearchName = "RapidAPI (JSearch)"

const jsearchHost = "jsearch.p.rapidapi.com"

// JSearch queries the JSearch API on RapidAPI.
type JSearch struct {
	key  string
	opts Options
}

// NewJSearch builds the JSearch adapter.
func NewJSearch(key string, opts Options) *JSearch {
	return &JSearch{key: key, opts: opts}
}

// Descriptor implements Adapter.
func (j *JSearch) Descriptor() Descriptor {
	return Descriptor{Name: JSearchName, Transport: TransportDirect, Stage: StageAPI}
}

type jsearchResponse struct {
	Data []struct {
		JobTitle          string    `json:"job_title"`
		EmployerName      string    `json:"employer_name"`
		JobCity           string    `json:"job_city"`
		JobState          string    `json:"job_state"`
		JobCountry        string    `json:"job_country"`
		JobEmploymentType string    `json:"job_employment_type"`
		JobDescription    string    `json:"job_description"`
		JobRequiredSkills []string  `json:"job_required_skills"`
		JobSalaryCurrency string    `json:"job_salary_currency"`
		JobSalaryPeriod   string    `json:"job_salary_period"`
		JobMinSalary      flexFloat `json:"job_min_salary"`
		JobMaxSalary      flexFloat `json:"job_max_salary"`
		JobHighlights     struct {
			Qualifications []string `json:"Qualifications"`
		} `json:"job_highlights"`
		JobApplyLink           string `json:"job_apply_link"`
		JobGoogleLink          string `json:"job_google_link"`
		JobPostedAtDatetimeUTC string `json:"job_posted_at_datetime_utc"`
		JobIsRemote            bool   `json:"job_is_remote"`
	} `json:"data"`
}

// Search implements Adapter.
func (j *JSearch) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	if j.key == "" {
		return nil, fmt.Errorf("rapidapi key: %w", ErrMissingCredential)
	}
	var resp jsearchResponse
	err := getJSON(ctx, j.opts.Client, j.opts.timeout(), collyfetcher.Request{
		URL: "https://" + jsearchHost + "/search",
		Query: url.Values{
			"query":            {strings.TrimSpace(req.Query + " " + req.Location)},
			"page":             {"1"},
			"num_pages":        {"1"},
			"remote_jobs_only": {strconv.FormatBool(req.Remote)},
		},
		Headers: http.Header{
			"X-RapidAPI-Key":  {j.key},
			"X-RapidAPI-Host": {jsearchHost},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("jsearch search: %w", err)
	}

	data := resp.Data
	if req.MaxResults > 0 && len(data) > req.MaxResults {
		data = data[:req.MaxResults]
	}
	postings := make([]job.Posting, 0, len(data))
	for _, r := range data {
		location := r.JobCountry
		if r.JobCity != "" && r.JobState != "" {
			location = r.JobCity + ", " + r.JobState
		}
		p := job.Posting{
			Title:               r.JobTitle,
			Company:             r.EmployerName,
			Location:            firstNonEmpty(location, defaultLocation),
			Type:                firstNonEmpty(strings.ToLower(r.JobEmploymentType), fullTime),
			Description:         r.JobDescription,
			Requirements:        r.JobRequiredSkills,
			Skills:              r.JobRequiredSkills,
			URL:                 firstNonEmpty(r.JobApplyLink, r.JobGoogleLink),
			PostedDate:          job.ParseTime(r.JobPostedAtDatetimeUTC),
			IsRemote:            r.JobIsRemote,
			IsLocalToTargetCity: job.LocalTo(r.JobCity, j.opts.City),
		}
		if len(r.JobHighlights.Qualifications) > 0 {
			p.Skills = r.JobHighlights.Qualifications
		}
		if r.JobSalaryPeriod != "" && r.JobMinSalary != 0 && r.JobMaxSalary != 0 {
			p.Salary = fmt.Sprintf("%s%s - %s/%s",
				firstNonEmpty(r.JobSalaryCurrency, "$"),
				formatNumber(float64(r.JobMinSalary)),
				formatNumber(float64(r.JobMaxSalary)),
				r.JobSalaryPeriod)
		}
		postings = append(postings, p)
	}
	return postings, nil
}

package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/job-aggregator/internal/extract"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// Traditional job board labels.
const (
	LinkedInName    = "LinkedIn"
	GlassdoorName   = "Glassdoor"
	NaukriName      = "Naukri"
	InternshalaName = "Internshala"
	UnstopName      = "Unstop"
)

const shortMarkerWait = 8 * time.Second

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewLinkedIn builds the LinkedIn public job search scraper.
func NewLinkedIn(opts Options) Adapter {
	s := newScraper(Descriptor{Name: LinkedInName, Stage: StageTraditional}, opts, shortMarkerWait)
	s.markers = []string{".jobs-search__results-list", ".base-card", "[class*='job']"}
	s.searchURL = func(req Request) string {
		return "https://www.linkedin.com/jobs/search/?keywords=" + url.QueryEscape(req.Query) + "&location=" + url.QueryEscape(req.Location)
	}
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseLinkedIn(doc, req, city)
	}
	return s
}

func parseLinkedIn(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:   []string{".base-card", "[class*='base-card']", "[class*='job-card']"},
		title:   extract.TextChain(".base-search-card__title", "[class*='title']"),
		company: extract.TextChain(".base-search-card__subtitle", "[class*='company']"),
		location: extract.Chain{
			extract.Text(".job-search-card__location"),
			extract.Text("[class*='location']"),
			extract.Const(req.Location),
		},
		link: extract.Attr("a", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if c.title == "" || c.company == "" || c.link == "" {
			continue
		}
		postings = append(postings, job.Posting{
			Title:               c.title,
			Company:             c.company,
			Location:            c.location,
			Type:                fullTime,
			Description:         fmt.Sprintf("%s position at %s", c.title, c.company),
			URL:                 extract.StripQuery(extract.Absolute("https://www.linkedin.com", c.link)),
			IsRemote:            isRemote(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		})
	}
	return postings
}

// NewGlassdoor builds the Glassdoor India scraper.
func NewGlassdoor(opts Options) Adapter {
	s := newScraper(Descriptor{Name: GlassdoorName, Stage: StageTraditional}, opts, shortMarkerWait)
	s.markers = []string{".JobsList_jobsList__Gy2Vo", ".react-job-listing", "[data-test='jobListing']", "[class*='job']"}
	s.searchURL = func(req Request) string { return glassdoorURL(req.Query, req.Location) }
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseGlassdoor(doc, req, city)
	}
	return s
}

// glassdoorURL encodes the keyword and location offsets Glassdoor expects in
// its search path. Offsets count characters of the raw inputs.
func glassdoorURL(query, location string) string {
	locLen := len([]rune(location))
	qLen := len([]rune(query))
	return fmt.Sprintf("https://www.glassdoor.co.in/Job/%s-%s-jobs-SRCH_IL.0,%d_KO%d,%d.htm",
		url.PathEscape(location), url.PathEscape(query), locLen, locLen+1, locLen+qLen+1)
}

func parseGlassdoor(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:   []string{".react-job-listing", "[data-test='jobListing']", "[class*='JobCard']", "li[class*='job']"},
		title:   extract.TextChain("[data-test='job-title']", ".jobTitle", "[class*='jobTitle']"),
		company: extract.TextChain(".EmployerProfile_employerName__Xemli", ".employer-name", "[class*='employer']"),
		location: extract.Chain{
			extract.Text("[data-test='emp-location']"),
			extract.Text(".location"),
			extract.Text("[class*='location']"),
			extract.Const(req.Location),
		},
		salary: extract.TextChain("[data-test='detailSalary']", ".salary-estimate"),
		link:   extract.Attr("a", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if c.title == "" || c.company == "" {
			continue
		}
		postings = append(postings, job.Posting{
			Title:               c.title,
			Company:             c.company,
			Location:            c.location,
			Type:                fullTime,
			Description:         fmt.Sprintf("%s role at %s", c.title, c.company),
			Salary:              c.salary,
			URL:                 extract.Absolute("https://www.glassdoor.co.in", c.link),
			IsRemote:            isRemote(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		})
	}
	return postings
}

// NewNaukri builds the Naukri scraper.
func NewNaukri(opts Options) Adapter {
	s := newScraper(Descriptor{Name: NaukriName, Stage: StageTraditional}, opts, 0)
	s.markers = []string{".srp-jobtuple-wrapper", "article.jobTuple"}
	s.searchURL = func(req Request) string {
		return "https://www.naukri.com/" + url.PathEscape(req.Query) + "-jobs-in-" + url.PathEscape(req.Location)
	}
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseNaukri(doc, req, city)
	}
	return s
}

func parseNaukri(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:    []string{".srp-jobtuple-wrapper, article.jobTuple"},
		title:    extract.TextChain(".title, .jobTuple-title"),
		company:  extract.TextChain(".comp-name, .companyInfo"),
		location: extract.Chain{extract.Text(".location, .locWdth"), extract.Const(req.Location)},
		salary:   extract.TextChain(".salary, .salaryWdth"),
		extra:    extract.TextChain(".experience, .expwdth"),
		link:     extract.Attr("a.title, a.jobTuple-title", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if c.title == "" || c.company == "" {
			continue
		}
		p := job.Posting{
			Title:               c.title,
			Company:             c.company,
			Location:            c.location,
			Type:                fullTime,
			Description:         fmt.Sprintf("%s position at %s", c.title, c.company),
			Salary:              c.salary,
			URL:                 extract.Absolute("https://www.naukri.com", c.link),
			IsRemote:            isRemote(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		}
		if c.extra != "" {
			p.Requirements = []string{c.extra}
		}
		postings = append(postings, p)
	}
	return postings
}

// NewInternshala builds the Internshala scraper.
func NewInternshala(opts Options) Adapter {
	s := newScraper(Descriptor{Name: InternshalaName, Stage: StageTraditional}, opts, 0)
	s.markers = []string{".individual_internship", ".internship_meta"}
	s.searchURL = func(req Request) string {
		return "https://internshala.com/jobs/" + url.PathEscape(hyphenate(req.Query)) + "-jobs-in-" + url.PathEscape(hyphenate(req.Location))
	}
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseInternshala(doc, req, city)
	}
	return s
}

func hyphenate(s string) string {
	return whitespaceRun.ReplaceAllString(s, "-")
}

func parseInternshala(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:    []string{".individual_internship"},
		title:    extract.TextChain(".job-internship-name, .profile"),
		company:  extract.TextChain(".company-name, .company_name"),
		location: extract.Chain{extract.Text(".location_link, .locations"), extract.Const(req.Location)},
		salary:   extract.TextChain(".stipend, .salary"),
		extra:    extract.TextChain(".duration, .other_detail_item"),
		link:     extract.Attr("a", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if c.title == "" || c.company == "" {
			continue
		}
		kind := fullTime
		if strings.Contains(c.extra, "month") {
			kind = "internship"
		}
		p := job.Posting{
			Title:               c.title,
			Company:             c.company,
			Location:            c.location,
			Type:                kind,
			Description:         fmt.Sprintf("%s opportunity at %s", c.title, c.company),
			Salary:              c.salary,
			URL:                 extract.Absolute("https://internshala.com", c.link),
			IsRemote:            isRemoteOrWFH(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		}
		if c.extra != "" {
			p.Requirements = []string{c.extra}
		}
		postings = append(postings, p)
	}
	return postings
}

// NewUnstop builds the Unstop scraper.
func NewUnstop(opts Options) Adapter {
	s := newScraper(Descriptor{Name: UnstopName, Stage: StageTraditional}, opts, 0)
	s.markers = []string{".opportunity-card", ".job-card"}
	s.searchURL = func(req Request) string {
		return "https://unstop.com/jobs?search=" + url.QueryEscape(req.Query)
	}
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseUnstop(doc, req, city)
	}
	return s
}

func parseUnstop(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:    []string{".opportunity-card, .job-card, [class*='JobCard']"},
		title:    extract.TextChain("h3, .title, [class*='title']"),
		company:  extract.TextChain(".company, [class*='company']"),
		location: extract.Chain{extract.Text(".location, [class*='location']"), extract.Const(req.Location)},
		salary:   extract.TextChain(".salary, .stipend, [class*='salary']"),
		link:     extract.Attr("a", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if c.title == "" || c.company == "" {
			continue
		}
		postings = append(postings, job.Posting{
			Title:               c.title,
			Company:             c.company,
			Location:            c.location,
			Type:                fullTime,
			Description:         fmt.Sprintf("%s role at %s", c.title, c.company),
			Salary:              c.salary,
			URL:                 extract.Absolute("https://unstop.com", c.link),
			IsRemote:            isRemoteOrWFH(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		})
	}
	return postings
}

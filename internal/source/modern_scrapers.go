package source

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/job-aggregator/internal/extract"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// Browser-rendered modern source labels.
const (
	WeWorkRemotelyName = "We Work Remotely"
	WellfoundName      = "Wellfound"
)

// NewWeWorkRemotely builds the We Work Remotely scraper.
func NewWeWorkRemotely(opts Options) Adapter {
	s := newScraper(Descriptor{Name: WeWorkRemotelyName, Stage: StageModern}, opts, 0)
	s.markers = []string{"li.feature"}
	s.searchURL = func(req Request) string {
		return "https://weworkremotely.com/remote-jobs/search?term=" + url.QueryEscape(req.Query)
	}
	s.parse = parseWeWorkRemotely
	return s
}

func parseWeWorkRemotely(doc *goquery.Document, req Request) []job.Posting {
	fields := cardFields{
		cards:   []string{"li.feature"},
		title:   extract.TextChain(".title"),
		company: extract.TextChain(".company"),
		extra:   extract.TextChain(".region"),
		link:    extract.Attr("a", "href"),
	}
	postings := make([]job.Posting, 0)
	for _, c := range fields.scan(doc) {
		if !matchesQuery(c.title, req.Query) {
			continue
		}
		postings = append(postings, job.Posting{
			Title:       c.title,
			Company:     c.company,
			Location:    remoteLocation,
			Type:        firstNonEmpty(c.extra, fullTime),
			Description: c.title + " at " + c.company,
			URL:         extract.Absolute("https://weworkremotely.com", c.link),
			IsRemote:    true,
		})
	}
	return postings
}

// NewWellfound builds the Wellfound scraper.
func NewWellfound(opts Options) Adapter {
	s := newScraper(Descriptor{Name: WellfoundName, Stage: StageModern}, opts, 0)
	s.markers = []string{"[class*='job']"}
	s.searchURL = func(req Request) string {
		return "https://wellfound.com/jobs?query=" + url.QueryEscape(req.Query) + "&location=" + url.QueryEscape(req.Location)
	}
	city := opts.City
	s.parse = func(doc *goquery.Document, req Request) []job.Posting {
		return parseWellfound(doc, req, city)
	}
	return s
}

func parseWellfound(doc *goquery.Document, req Request, city string) []job.Posting {
	fields := cardFields{
		cards:    []string{"[class*='JobSearchCard']"},
		title:    extract.TextChain("[class*='title']"),
		company:  extract.TextChain("[class*='company']"),
		location: extract.Chain{extract.Text("[class*='location']"), extract.Const(req.Location)},
		salary:   extract.TextChain("[class*='salary']"),
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
			Description:         c.title + " at " + c.company,
			Salary:              c.salary,
			URL:                 extract.Absolute("https://wellfound.com", c.link),
			IsRemote:            isRemote(c.location),
			IsLocalToTargetCity: job.LocalTo(c.location, city),
		})
	}
	return postings
}

package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-aggregator/internal/browser"
	"github.com/JakeFAU/job-aggregator/internal/extract"
)

type fakePage struct {
	html      string
	navErr    error
	waitErr   error
	visited   string
	waitedFor []string
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.visited = url
	return p.navErr
}

func (p *fakePage) WaitForAny(_ context.Context, selectors []string, _ time.Duration) (string, error) {
	p.waitedFor = selectors
	if p.waitErr != nil {
		return "", p.waitErr
	}
	return selectors[0], nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page      *fakePage
	startErr  error
	ensureHit int
}

func (b *fakeBrowser) EnsureRunning(context.Context) error {
	b.ensureHit++
	return b.startErr
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	return b.page, nil
}

const linkedInHTML = `<ul class="jobs-search__results-list">
  <li><div class="base-card">
    <h3 class="base-search-card__title">Go Developer</h3>
    <h4 class="base-search-card__subtitle">Acme</h4>
    <span class="job-search-card__location">Hyderabad, Telangana</span>
    <a href="https://in.linkedin.com/jobs/view/1?refId=abc">view</a>
  </div></li>
  <li><div class="base-card">
    <span class="job-title">Rust Developer</span>
    <span class="company-name">Beta</span>
    <a href="/jobs/view/2">view</a>
  </div></li>
  <li><div class="base-card">
    <h3 class="base-search-card__title">No Company</h3>
    <a href="/jobs/view/3">view</a>
  </div></li>
</ul>`

func TestLinkedInScraperEndToEnd(t *testing.T) {
	t.Parallel()

	page := &fakePage{html: linkedInHTML}
	b := &fakeBrowser{page: page}
	a := NewLinkedIn(Options{City: "hyderabad"})
	require.Equal(t, TransportBrowser, a.Descriptor().Transport)
	require.Equal(t, StageTraditional, a.Descriptor().Stage)

	postings, err := a.Search(context.Background(), Request{Query: "go developer", Location: "Pune", MaxResults: 10, Browser: b})
	require.NoError(t, err)
	require.Equal(t, "https://www.linkedin.com/jobs/search/?keywords=go+developer&location=Pune", page.visited)
	require.Equal(t, []string{".jobs-search__results-list", ".base-card", "[class*='job']"}, page.waitedFor)
	require.True(t, page.closed)
	require.Equal(t, 1, b.ensureHit)

	require.Len(t, postings, 2)
	require.Equal(t, "https://in.linkedin.com/jobs/view/1", postings[0].URL)
	require.Equal(t, "Go Developer position at Acme", postings[0].Description)
	require.True(t, postings[0].IsLocalToTargetCity)

	require.Equal(t, "Rust Developer", postings[1].Title)
	require.Equal(t, "Beta", postings[1].Company)
	require.Equal(t, "Pune", postings[1].Location)
	require.Equal(t, "https://www.linkedin.com/jobs/view/2", postings[1].URL)
}

func TestScraperToleratesMissingMarker(t *testing.T) {
	t.Parallel()

	page := &fakePage{html: linkedInHTML, waitErr: fmt.Errorf("wait: %w", context.DeadlineExceeded)}
	postings, err := NewLinkedIn(Options{}).Search(context.Background(), Request{Query: "developer", MaxResults: 1, Browser: &fakeBrowser{page: page}})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.True(t, page.closed)
}

func TestScraperFailures(t *testing.T) {
	t.Parallel()

	_, err := NewNaukri(Options{}).Search(context.Background(), Request{})
	require.ErrorIs(t, err, browser.ErrDisabled)

	boom := errors.New("chrome missing")
	_, err = NewNaukri(Options{}).Search(context.Background(), Request{Browser: &fakeBrowser{startErr: boom}})
	require.ErrorIs(t, err, boom)

	page := &fakePage{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	_, err = NewUnstop(Options{}).Search(context.Background(), Request{Browser: &fakeBrowser{page: page}})
	require.Error(t, err)
	require.True(t, page.closed)
}

func TestGlassdoorURLAndParse(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://www.glassdoor.co.in/Job/hyderabad-golang-jobs-SRCH_IL.0,9_KO10,16.htm",
		glassdoorURL("golang", "hyderabad"))

	doc, err := extract.Parse(`<ul>
	  <li class="react-job-listing">
	    <a href="/partner/jobListing.htm?id=1"><div data-test="job-title">SDE II</div></a>
	    <div class="EmployerProfile_employerName__Xemli">Acme</div>
	    <div data-test="emp-location">Hyderabad</div>
	    <div data-test="detailSalary">₹20L - ₹30L</div>
	  </li>
	  <li class="react-job-listing"><div class="jobTitle">Orphan</div></li>
	</ul>`)
	require.NoError(t, err)
	postings := parseGlassdoor(doc, Request{Location: "hyderabad"}, "hyderabad")
	require.Len(t, postings, 1)
	require.Equal(t, "₹20L - ₹30L", postings[0].Salary)
	require.Equal(t, "https://www.glassdoor.co.in/partner/jobListing.htm?id=1", postings[0].URL)
	require.Equal(t, "SDE II role at Acme", postings[0].Description)
	require.True(t, postings[0].IsLocalToTargetCity)
}

func TestNaukriParse(t *testing.T) {
	t.Parallel()

	doc, err := extract.Parse(`<div>
	  <div class="srp-jobtuple-wrapper">
	    <a class="title" href="https://www.naukri.com/job-listings-1">Java Developer</a>
	    <a class="comp-name">Infosys</a>
	    <span class="experience">2-5 Yrs</span>
	    <span class="salary">Not disclosed</span>
	  </div>
	</div>`)
	require.NoError(t, err)
	postings := parseNaukri(doc, Request{Location: "Bengaluru"}, "hyderabad")
	require.Len(t, postings, 1)
	require.Equal(t, "Bengaluru", postings[0].Location)
	require.Equal(t, []string{"2-5 Yrs"}, postings[0].Requirements)
	require.Equal(t, "Not disclosed", postings[0].Salary)
	require.Equal(t, "https://www.naukri.com/job-listings-1", postings[0].URL)
	require.False(t, postings[0].IsLocalToTargetCity)
}

func TestInternshalaParse(t *testing.T) {
	t.Parallel()

	doc, err := extract.Parse(`<div>
	  <div class="individual_internship">
	    <h3 class="job-internship-name">Web Development</h3>
	    <p class="company-name">StartupX</p>
	    <a class="location_link">Work From Home</a>
	    <span class="stipend">₹10,000 /month</span>
	    <div class="duration">6 months</div>
	    <a href="/internship/detail/1">open</a>
	  </div>
	  <div class="individual_internship">
	    <h3 class="profile">Sales</h3>
	    <p class="company_name">Corp</p>
	    <a class="locations">Hyderabad</a>
	  </div>
	</div>`)
	require.NoError(t, err)
	postings := parseInternshala(doc, Request{Location: "hyderabad"}, "hyderabad")
	require.Len(t, postings, 2)
	require.Equal(t, "internship", postings[0].Type)
	require.Equal(t, []string{"6 months"}, postings[0].Requirements)
	require.True(t, postings[0].IsRemote)
	require.Equal(t, "Web Development opportunity at StartupX", postings[0].Description)
	require.Equal(t, "full-time", postings[1].Type)
	require.True(t, postings[1].IsLocalToTargetCity)
	require.Equal(t, "hyderabad-jobs-in-new-delhi", hyphenate("hyderabad")+"-jobs-in-"+hyphenate("new  delhi"))
}

func TestUnstopAndWellfoundParse(t *testing.T) {
	t.Parallel()

	doc, err := extract.Parse(`<div>
	  <div class="opportunity-card"><h3>Analyst</h3><span class="company">Unstop Co</span><a href="/jobs/1">x</a></div>
	  <div class="JobSearchCard_root"><span class="job_title">Go Eng</span><span class="company_name">Seed</span><span class="location_tag">Remote</span><a href="/jobs/9">x</a></div>
	</div>`)
	require.NoError(t, err)

	unstop := parseUnstop(doc, Request{Location: "Remote"}, "")
	require.Len(t, unstop, 1)
	require.Equal(t, "https://unstop.com/jobs/1", unstop[0].URL)
	require.True(t, unstop[0].IsRemote)

	wellfound := parseWellfound(doc, Request{Location: "hyderabad"}, "hyderabad")
	require.Len(t, wellfound, 1)
	require.Equal(t, "Go Eng", wellfound[0].Title)
	require.Equal(t, "https://wellfound.com/jobs/9", wellfound[0].URL)
	require.True(t, wellfound[0].IsRemote)
}

func TestWeWorkRemotelyFiltersByTitle(t *testing.T) {
	t.Parallel()

	doc, err := extract.Parse(`<ul>
	  <li class="feature"><a href="/remote-jobs/acme-go"><span class="title">Go Engineer</span><span class="company">Acme</span><span class="region">Contract</span></a></li>
	  <li class="feature"><a href="/remote-jobs/beta-design"><span class="title">Designer</span><span class="company">Beta</span></a></li>
	</ul>`)
	require.NoError(t, err)
	postings := parseWeWorkRemotely(doc, Request{Query: "go"})
	require.Len(t, postings, 1)
	require.Equal(t, "Contract", postings[0].Type)
	require.Equal(t, "Go Engineer at Acme", postings[0].Description)
	require.Equal(t, "https://weworkremotely.com/remote-jobs/acme-go", postings[0].URL)
}

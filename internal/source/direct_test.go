package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
)

// rewriteTransport sends every request to target and records the original host.
type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Original-Host", req.URL.Host)
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	clone.Host = rt.target.Host
	return rt.base.RoundTrip(clone)
}

func newTestClient(t *testing.T, handler http.Handler) JSONClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return collyfetcher.New(collyfetcher.Config{
		Timeout:   2 * time.Second,
		Transport: rewriteTransport{target: target, base: http.DefaultTransport},
	})
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestAdzunaSearch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "api.adzuna.com", r.Header.Get("X-Original-Host"))
		require.Equal(t, "/v1/api/jobs/in/search/1", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "id", q.Get("app_id"))
		require.Equal(t, "key", q.Get("app_key"))
		require.Equal(t, "5", q.Get("results_per_page"))
		require.Equal(t, "golang", q.Get("what"))
		require.Equal(t, "hyderabad", q.Get("where"))
		require.Equal(t, "json", q.Get("content_type"))
		writeBody(w, `{"results":[
			{"title":"Go Engineer","company":{"display_name":"Acme"},"location":{"display_name":"Hyderabad, Telangana"},
			 "salary_min":800000,"salary_max":1200000,"category":{"label":"IT Jobs"},"redirect_url":"https://adzuna.test/1","created":"2025-05-01T10:00:00Z"},
			{"title":"Remote Go","location":{"display_name":"Remote"}}
		]}`)
	}))

	a := NewAdzuna(AdzunaConfig{AppID: "id", AppKey: "key"}, Options{Client: client, City: "hyderabad"})
	postings, err := a.Search(context.Background(), Request{Query: "golang", Location: "hyderabad", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, postings, 2)

	first := postings[0]
	require.Equal(t, "Acme", first.Company)
	require.Equal(t, "full-time", first.Type)
	require.Equal(t, "₹800000 - ₹1200000/year", first.Salary)
	require.Equal(t, []string{"IT Jobs"}, first.Skills)
	require.True(t, first.IsLocalToTargetCity)
	require.False(t, first.IsRemote)
	require.Equal(t, 2025, first.PostedDate.Year())

	second := postings[1]
	require.True(t, second.IsRemote)
	require.Empty(t, second.Salary)
	require.Empty(t, second.Company)
}

func TestAdzunaMissingCredential(t *testing.T) {
	t.Parallel()

	_, err := NewAdzuna(AdzunaConfig{AppID: "id"}, Options{}).Search(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMissingCredential)
	_, err = NewJSearch("", Options{}).Search(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMissingCredential)
	_, err = NewSerpAPI("", Options{}).Search(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestJSearchSearch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))
		require.Equal(t, "jsearch.p.rapidapi.com", r.Header.Get("X-RapidAPI-Host"))
		require.Equal(t, "golang hyderabad", r.URL.Query().Get("query"))
		require.Equal(t, "true", r.URL.Query().Get("remote_jobs_only"))
		writeBody(w, `{"data":[
			{"job_title":"Go Dev","employer_name":"Acme","job_city":"Hyderabad","job_state":"TS","job_employment_type":"FULLTIME",
			 "job_required_skills":["go"],"job_highlights":{"Qualifications":["3 years"]},"job_min_salary":10,"job_max_salary":20,
			 "job_salary_period":"HOUR","job_google_link":"https://g.test/1","job_is_remote":true},
			{"job_title":"Second","job_country":"IN"},
			{"job_title":"Third"}
		]}`)
	}))

	j := NewJSearch("secret", Options{Client: client, City: "Hyderabad"})
	postings, err := j.Search(context.Background(), Request{Query: "golang", Location: "hyderabad", Remote: true, MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, postings, 2)

	first := postings[0]
	require.Equal(t, "Hyderabad, TS", first.Location)
	require.Equal(t, "fulltime", first.Type)
	require.Equal(t, "$10 - 20/HOUR", first.Salary)
	require.Equal(t, []string{"go"}, first.Requirements)
	require.Equal(t, []string{"3 years"}, first.Skills)
	require.Equal(t, "https://g.test/1", first.URL)
	require.True(t, first.IsRemote)
	require.True(t, first.IsLocalToTargetCity)
	require.Equal(t, "IN", postings[1].Location)
}

func TestSerpAPISearch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "google_jobs", r.URL.Query().Get("engine"))
		require.Equal(t, "k", r.URL.Query().Get("api_key"))
		writeBody(w, `{"jobs_results":[
			{"title":"Go Dev (Remote)","company_name":"Acme","related_links":[{"text":"Acme site"}],
			 "detected_extensions":{"salary":"₹10L"},"apply_options":[{"link":"https://apply.test/1"}]}
		]}`)
	}))

	postings, err := NewSerpAPI("k", Options{Client: client}).Search(context.Background(), Request{Query: "go", MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "Unknown", postings[0].Location)
	require.Equal(t, []string{"Acme site"}, postings[0].Requirements)
	require.Equal(t, "https://apply.test/1", postings[0].URL)
	require.Equal(t, "₹10L", postings[0].Salary)
	require.True(t, postings[0].IsRemote)
}

func TestRemotiveSearch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "remotive.io", r.Header.Get("X-Original-Host"))
		require.Equal(t, "/api/remote-jobs", r.URL.Path)
		writeBody(w, `{"jobs":[{"title":"Go","company_name":"R","job_type":"Full_Time","tags":["go"],"url":"https://r.test/1"},{"title":"B"}]}`)
	}))

	postings, err := NewRemotive(Options{Client: client, City: "Remote"}).Search(context.Background(), Request{Query: "go", MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "Remote", postings[0].Location)
	require.Equal(t, "full_time", postings[0].Type)
	require.True(t, postings[0].IsRemote)
	require.False(t, postings[0].IsLocalToTargetCity)
}

func TestRemoteOKSkipsNoticeAndFilters(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("User-Agent"))
		writeBody(w, `[
			{"legal":"terms","position":"Go Developer"},
			{"id":"11","position":"Senior Go Developer","company":"A","tags":["go"],"salary_min":100000,"salary_max":150000},
			{"id":12,"position":"Designer","company":"B"},
			{"id":13,"position":"go developer","company":"C","location":"Worldwide"}
		]`)
	}))

	postings, err := NewRemoteOK(Options{Client: client}).Search(context.Background(), Request{Query: "Go Developer", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, postings, 2)
	require.Equal(t, "https://remoteok.com/remote-jobs/11", postings[0].URL)
	require.Equal(t, "$100000 - $150000", postings[0].Salary)
	require.Equal(t, "Remote", postings[0].Location)
	require.Equal(t, []string{"go"}, postings[0].Requirements)
	require.Equal(t, "Worldwide", postings[1].Location)
	require.True(t, postings[1].IsRemote)
}

func TestLeverFanOutKeepsCompanyOrder(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "json", r.URL.Query().Get("mode"))
		switch r.URL.Path {
		case "/v0/postings/alpha":
			time.Sleep(20 * time.Millisecond)
			writeBody(w, `[{"text":"Go Engineer","workplaceType":"remote","categories":{"commitment":"Full-time","team":"Platform"},
				"lists":[{"content":"<li>Go</li>"}],"hostedUrl":"https://jobs.lever.co/alpha/1","createdAt":1735689600000},
				{"text":"Recruiter"}]`)
		case "/v0/postings/beta":
			writeBody(w, `[{"text":"go engineer II","categories":{"location":"Hyderabad"},"applyUrl":"https://jobs.lever.co/beta/1/apply"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	l := NewLever([]string{"alpha", "missing", "beta"}, Options{Client: client, City: "hyderabad"})
	postings, err := l.Search(context.Background(), Request{Query: "go engineer", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, postings, 2)

	require.Equal(t, "alpha", postings[0].Company)
	require.Equal(t, "remote", postings[0].Location)
	require.Equal(t, "Full-time", postings[0].Type)
	require.Equal(t, []string{"Platform"}, postings[0].Skills)
	require.True(t, postings[0].IsRemote)
	require.Equal(t, 2025, postings[0].PostedDate.Year())

	require.Equal(t, "beta", postings[1].Company)
	require.Equal(t, "https://jobs.lever.co/beta/1/apply", postings[1].URL)
	require.True(t, postings[1].IsLocalToTargetCity)
}

func TestGreenhouseStripsHTML(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/boards/acme/jobs", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("content"))
		writeBody(w, `{"jobs":[{"title":"Backend Engineer","location":{"name":"Remote, India"},
			"content":"&lt;p&gt;Build APIs&lt;/p&gt;","departments":[{"name":"Engineering"}],
			"absolute_url":"https://boards.greenhouse.io/acme/jobs/1","updated_at":"2025-04-02T08:00:00-04:00"}]}`)
	}))

	postings, err := NewGreenhouse([]string{"acme"}, Options{Client: client}).Search(context.Background(), Request{Query: "engineer", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "Build APIs", postings[0].Description)
	require.Equal(t, []string{"Engineering"}, postings[0].Skills)
	require.True(t, postings[0].IsRemote)
}

func TestYCombinatorAcceptsBothShapes(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`[{"id":7,"title":"Founding Go Engineer","location":"San Francisco"}]`,
		`{"jobs":[{"id":"7","title":"Founding Go Engineer","location":"San Francisco"}]}`,
	} {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeBody(w, body)
		}))
		postings, err := NewYCombinator(Options{Client: client}).Search(context.Background(), Request{Query: "go", MaxResults: 5})
		require.NoError(t, err)
		require.Len(t, postings, 1)
		require.Equal(t, "YC Company", postings[0].Company)
		require.Equal(t, "https://www.ycombinator.com/jobs/7", postings[0].URL)
		require.False(t, postings[0].IsRemote)
	}
}

func TestDirectAdapterSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := NewRemotive(Options{Client: client}).Search(context.Background(), Request{Query: "go"})
	var statusErr *collyfetcher.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

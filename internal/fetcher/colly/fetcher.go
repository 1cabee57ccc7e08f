// Package collyfetcher performs outbound provider calls using gocolly.
package collyfetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultTimeout = 15 * time.Second

// Waiter blocks until an outbound call to rawURL may proceed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout applies when a Request does not carry its own.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for retryable failures.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Limiter is optional; nil disables per-host limiting.
	Limiter Waiter
	// Transport is optional; nil uses a pooled http.Transport.
	Transport http.RoundTripper
}

// Request describes one GET.
type Request struct {
	URL     string
	Query   url.Values
	Headers http.Header
	Timeout time.Duration
}

// Response carries the raw result of a GET.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Fetcher issues provider calls. Each call gets its own collector; all
// collectors share one transport so connections are pooled.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	retry     *retryPolicy
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		retry:     newRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
	}
}

// Fetch executes a GET, retrying transient failures per the configured policy.
func (f *Fetcher) Fetch(ctx context.Context, request Request) (Response, error) {
	target, err := buildURL(request)
	if err != nil {
		return Response{}, err
	}
	for attempt := 0; ; attempt++ {
		if f.cfg.Limiter != nil {
			if err := f.cfg.Limiter.Wait(ctx, target); err != nil {
				return Response{}, fmt.Errorf("wait for %s: %w", target, err)
			}
		}
		resp, err := f.fetchOnce(ctx, target, request)
		if err == nil {
			return resp, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return Response{}, err
		}
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("colly retry canceled: %w", ctx.Err())
		case <-time.After(f.retry.Backoff(attempt)):
		}
	}
}

// GetJSON fetches request and decodes the body into out.
func (f *Fetcher) GetJSON(ctx context.Context, request Request, out any) error {
	resp, err := f.Fetch(ctx, request)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", resp.URL, err)
	}
	return nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string, request Request) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		return Response{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(request Request) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	collector.WithTransport(f.transport)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.timeout(request))
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request Request,
	start time.Time,
	result *Response,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(request.Headers, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusMultipleChoices {
			target := ""
			if r.Request != nil && r.Request.URL != nil {
				target = r.Request.URL.String()
			}
			*fetchErr = &StatusError{StatusCode: r.StatusCode, URL: target}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) timeout(request Request) time.Duration {
	switch {
	case request.Timeout > 0:
		return request.Timeout
	case f.cfg.Timeout > 0:
		return f.cfg.Timeout
	default:
		return defaultTimeout
	}
}

func buildURL(request Request) (string, error) {
	if request.URL == "" {
		return "", errors.New("request url is required")
	}
	u, err := url.Parse(request.URL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if len(request.Query) > 0 {
		q := u.Query()
		for key, values := range request.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

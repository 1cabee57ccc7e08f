package source

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultCompanyTimeout = 10 * time.Second
	defaultLocation       = "Unknown"
	remoteLocation        = "Remote"
	fullTime              = "full-time"
)

// Options carries dependencies shared by every adapter.
type Options struct {
	// Client performs direct provider calls.
	Client JSONClient
	// City is the target city used for the local-to-city flag.
	City string
	// Timeout replaces the 15s request default when positive. Per-company
	// board calls never exceed their own 10s bound.
	Timeout time.Duration
	// MarkerWait replaces the 10s marker wait when positive. Adapters with a
	// shorter wait of their own keep it.
	MarkerWait time.Duration
	// UserAgent is sent to providers that reject anonymous clients.
	UserAgent string
	Logger    *zap.Logger
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o Options) companyTimeout() time.Duration {
	return min(o.timeout(), defaultCompanyTimeout)
}

func (o Options) markerWait() time.Duration {
	if o.MarkerWait > 0 {
		return o.MarkerWait
	}
	return defaultMarkerWait
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) userAgent() string {
	if o.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	return o.UserAgent
}

// getJSON issues one bounded request through client.
func getJSON(ctx context.Context, client JSONClient, timeout time.Duration, req collyfetcher.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req.Timeout = timeout
	return client.GetJSON(ctx, req, out)
}

// matchesQuery reports whether title contains query, ignoring case. An empty
// query matches everything.
func matchesQuery(title, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return job.ContainsFold(title, query)
}

func isRemote(location string) bool {
	return job.ContainsFold(location, "remote")
}

func isRemoteOrWFH(location string) bool {
	return isRemote(location) || job.ContainsFold(location, "work from home")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// flexString decodes a JSON string or number into its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat decodes a JSON number or numeric string; anything else reads as zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		*f = 0
		return nil //nolint:nilerr // unparseable amounts are treated as absent
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil //nolint:nilerr // unparseable amounts are treated as absent
	}
	*f = flexFloat(v)
	return nil
}

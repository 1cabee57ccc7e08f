// Package source defines the provider adapters that turn one job search into
// normalized postings, and the guard that keeps any adapter from failing a run.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/job-aggregator/internal/browser"
	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

// ErrMissingCredential marks an adapter that is configured without its API key.
var ErrMissingCredential = errors.New("missing credential")

// Transport says how an adapter reaches its provider.
type Transport string

// Transports.
const (
	TransportDirect  Transport = "direct"
	TransportBrowser Transport = "browser"
)

// Stage is the run phase an adapter belongs to.
type Stage int

// Stages, in execution order.
const (
	StageAPI Stage = iota + 1
	StageModern
	StageTraditional
)

func (s Stage) String() string {
	switch s {
	case StageAPI:
		return "apis"
	case StageModern:
		return "modern"
	case StageTraditional:
		return "traditional"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Descriptor identifies an adapter.
type Descriptor struct {
	Name      string
	Transport Transport
	Stage     Stage
}

// Browser is the slice of a browser session adapters may use.
type Browser interface {
	EnsureRunning(ctx context.Context) error
	NewPage(ctx context.Context) (browser.Page, error)
}

// JSONClient performs GET requests and decodes JSON bodies.
type JSONClient interface {
	GetJSON(ctx context.Context, req collyfetcher.Request, out any) error
}

// Request is one adapter invocation.
type Request struct {
	Query      string
	Location   string
	Remote     bool
	MaxResults int
	// Browser is the run-scoped session; nil when rendering is disabled.
	Browser Browser
}

// Source is an adapter as the orchestrator sees it: it never fails.
type Source interface {
	Descriptor() Descriptor
	Fetch(ctx context.Context, req Request) []job.Posting
}

// Adapter is the fallible form implemented by providers.
type Adapter interface {
	Descriptor() Descriptor
	Search(ctx context.Context, req Request) ([]job.Posting, error)
}

// Outcome classifies one adapter run.
type Outcome string

// Outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Report is the full result of a guarded adapter run.
type Report struct {
	Postings []job.Posting
	Outcome  Outcome
	Err      error
	Elapsed  time.Duration
}

package source

import (
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/clock"
)

// Config selects and configures the providers.
type Config struct {
	Adzuna              AdzunaConfig
	RapidAPIKey         string
	SerpAPIKey          string
	LeverCompanies      []string
	GreenhouseCompanies []string
	// Enabled switches providers off by ID. Missing IDs are enabled.
	Enabled map[string]bool
}

func (c Config) enabled(id string) bool {
	on, ok := c.Enabled[id]
	return !ok || on
}

// Registry holds the guarded adapters of every stage in registration order.
type Registry struct {
	stages map[Stage][]Source
}

// NewRegistry builds every enabled provider.
func NewRegistry(cfg Config, opts Options, clk clock.Clock) *Registry {
	logger := opts.logger()
	entries := []struct {
		id      string
		adapter Adapter
	}{
		{"adzuna", NewAdzuna(cfg.Adzuna, opts)},
		{"jsearch", NewJSearch(cfg.RapidAPIKey, opts)},
		{"serpapi", NewSerpAPI(cfg.SerpAPIKey, opts)},
		{"remotive", NewRemotive(opts)},
		{"remoteok", NewRemoteOK(opts)},
		{"lever", NewLever(cfg.LeverCompanies, opts)},
		{"greenhouse", NewGreenhouse(cfg.GreenhouseCompanies, opts)},
		{"weworkremotely", NewWeWorkRemotely(opts)},
		{"wellfound", NewWellfound(opts)},
		{"ycombinator", NewYCombinator(opts)},
		{"linkedin", NewLinkedIn(opts)},
		{"glassdoor", NewGlassdoor(opts)},
		{"naukri", NewNaukri(opts)},
		{"internshala", NewInternshala(opts)},
		{"unstop", NewUnstop(opts)},
	}
	r := &Registry{stages: make(map[Stage][]Source)}
	for _, e := range entries {
		if !cfg.enabled(e.id) {
			logger.Info("source disabled", zap.String("source", e.adapter.Descriptor().Name))
			continue
		}
		r.Register(Safe(e.adapter, logger, clk))
	}
	return r
}

// NewEmptyRegistry returns a registry with no sources.
func NewEmptyRegistry() *Registry {
	return &Registry{stages: make(map[Stage][]Source)}
}

// Register appends s to its stage.
func (r *Registry) Register(s Source) {
	stage := s.Descriptor().Stage
	r.stages[stage] = append(r.stages[stage], s)
}

// Stage returns the sources of one stage in registration order.
func (r *Registry) Stage(s Stage) []Source {
	return r.stages[s]
}

// Names lists every registered source name, stage by stage.
func (r *Registry) Names() []string {
	var names []string
	for _, stage := range []Stage{StageAPI, StageModern, StageTraditional} {
		for _, s := range r.stages[stage] {
			names = append(names, s.Descriptor().Name)
		}
	}
	return names
}

// IDs lists the provider identifiers accepted in Config.Enabled.
func IDs() []string {
	return strings.Fields("adzuna jsearch serpapi remotive remoteok lever greenhouse weworkremotely wellfound ycombinator linkedin glassdoor naukri internshala unstop")
}

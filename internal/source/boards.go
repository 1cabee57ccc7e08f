package source

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/job-aggregator/internal/job"
)

// DefaultCompanies are the public job boards polled on Lever and Greenhouse.
var DefaultCompanies = []string{"netflix", "shopify", "stripe", "gitlab", "reddit", "canva"}

type boardFetch func(ctx context.Context, company string) ([]job.Posting, error)

// fanOutCompanies polls every company board concurrently and merges the
// results in company order, capped at limit. A failing board is logged and
// skipped.
func fanOutCompanies(ctx context.Context, companies []string, limit int, logger *zap.Logger, fetch boardFetch) []job.Posting {
	results := make([][]job.Posting, len(companies))
	var g errgroup.Group
	for i, company := range companies {
		company = strings.TrimSpace(company)
		if company == "" {
			continue
		}
		g.Go(func() error {
			postings, err := fetch(ctx, company)
			if err != nil {
				logger.Warn("company board failed", zap.String("company", company), zap.Error(err))
				return nil
			}
			results[i] = postings
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]job.Posting, 0)
	for _, postings := range results {
		for _, p := range postings {
			if limit > 0 && len(merged) >= limit {
				return merged
			}
			merged = append(merged, p)
		}
	}
	return merged
}

func companiesOrDefault(companies []string) []string {
	if len(companies) == 0 {
		return DefaultCompanies
	}
	return companies
}

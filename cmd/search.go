package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/api"
)

type searchFlags struct {
	query           string
	location        string
	remote          bool
	maxResults      int
	includeScraping bool
}

// newSearchCmd creates the 'search' subcommand. It runs one aggregation and
// prints the body POST /search would return.
func newSearchCmd(root *rootOptions) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Runs one job search and prints the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearchCommand(cmd, root, flags)
		},
	}
	cmd.Flags().StringVar(&flags.query, "query", "", "search keywords (default from search.default_query)")
	cmd.Flags().StringVar(&flags.location, "location", "", "search location (default from search.default_location)")
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "prefer remote postings")
	cmd.Flags().IntVar(&flags.maxResults, "max-results", 0, "maximum postings (default from search.default_max_results)")
	cmd.Flags().BoolVar(&flags.includeScraping, "include-scraping", true, "run the browser-rendered scrapers")
	return cmd
}

func runSearchCommand(cmd *cobra.Command, root *rootOptions, flags *searchFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := appInstance.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
			appInstance.Logger().Warn("failed to close application", zap.Error(cerr))
		}
	}()

	req := api.SearchRequest{}
	if cmd.Flags().Changed("query") {
		req.Query = &flags.query
	}
	if cmd.Flags().Changed("location") {
		req.Location = &flags.location
	}
	if cmd.Flags().Changed("remote") {
		req.Remote = &flags.remote
	}
	if cmd.Flags().Changed("max-results") {
		req.MaxResults = &flags.maxResults
	}
	if cmd.Flags().Changed("include-scraping") {
		req.IncludeScraping = &flags.includeScraping
	}
	params, err := req.Params(root.cfg.Search)
	if err != nil {
		return fmt.Errorf("invalid search: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	res, err := appInstance.Searcher().Search(cmd.Context(), params)
	if err != nil {
		if encErr := enc.Encode(api.NewSearchFailure(err.Error())); encErr != nil {
			return fmt.Errorf("write result: %w", encErr)
		}
		return fmt.Errorf("search: %w", err)
	}
	if err := enc.Encode(api.NewSearchResponse(res)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

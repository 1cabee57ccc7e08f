package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/browser"
	"github.com/JakeFAU/job-aggregator/internal/extract"
	"github.com/JakeFAU/job-aggregator/internal/job"
)

const defaultMarkerWait = 10 * time.Second

// scraper is a browser-rendered adapter: load one results page, wait for a
// results marker, and extract cards from the rendered DOM.
type scraper struct {
	desc       Descriptor
	markers    []string
	markerWait time.Duration
	searchURL  func(req Request) string
	parse      func(doc *goquery.Document, req Request) []job.Posting
	logger     *zap.Logger
}

// newScraper caps the marker wait at wait when positive; 0 takes the configured wait.
func newScraper(desc Descriptor, opts Options, wait time.Duration) *scraper {
	if wait > 0 {
		wait = min(wait, opts.markerWait())
	} else {
		wait = opts.markerWait()
	}
	desc.Transport = TransportBrowser
	return &scraper{
		desc:       desc,
		markerWait: wait,
		logger:     opts.logger().With(zap.String("source", desc.Name)),
	}
}

// Descriptor implements Adapter.
func (s *scraper) Descriptor() Descriptor {
	return s.desc
}

// Search implements Adapter.
func (s *scraper) Search(ctx context.Context, req Request) ([]job.Posting, error) {
	doc, err := s.render(ctx, req)
	if err != nil {
		return nil, err
	}
	postings := s.parse(doc, req)
	if req.MaxResults > 0 && len(postings) > req.MaxResults {
		postings = postings[:req.MaxResults]
	}
	return postings, nil
}

func (s *scraper) render(ctx context.Context, req Request) (*goquery.Document, error) {
	if req.Browser == nil {
		return nil, browser.ErrDisabled
	}
	if err := req.Browser.EnsureRunning(ctx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	page, err := req.Browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			s.logger.Debug("close page failed", zap.Error(closeErr))
		}
	}()

	target := s.searchURL(req)
	if err := page.Navigate(ctx, target); err != nil {
		return nil, err
	}
	if len(s.markers) > 0 {
		if _, err := page.WaitForAny(ctx, s.markers, s.markerWait); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Debug("no result marker rendered", zap.String("url", target))
		}
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Parse(html)
}

// cardFields lists the extraction chains for one card layout.
type cardFields struct {
	cards    []string
	title    extract.Chain
	company  extract.Chain
	location extract.Chain
	salary   extract.Chain
	extra    extract.Chain
	link     extract.Extractor
}

// scrapedCard is the raw text pulled from one card.
type scrapedCard struct {
	title, company, location, salary, extra, link string
}

func (f cardFields) scan(doc *goquery.Document) []scrapedCard {
	cards := extract.Cards(doc.Selection, f.cards...)
	out := make([]scrapedCard, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		c := scrapedCard{
			title:    f.title.Extract(card),
			company:  f.company.Extract(card),
			location: f.location.Extract(card),
			salary:   f.salary.Extract(card),
			extra:    f.extra.Extract(card),
		}
		if f.link != nil {
			c.link = f.link(card)
		}
		out = append(out, c)
	})
	return out
}

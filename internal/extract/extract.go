// Package extract pulls fields out of rendered result pages with ordered
// fallback chains of goquery selectors.
//
// A Chain is tried front to back and the first non-empty value wins. A miss is
// never an error: an exhausted chain yields "" and callers decide whether the
// field is required.
package extract

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor reads one value from a card.
type Extractor func(card *goquery.Selection) string

// Chain is an ordered list of extractors.
type Chain []Extractor

// Extract returns the first non-empty value produced by the chain.
func (c Chain) Extract(card *goquery.Selection) string {
	if card == nil {
		return ""
	}
	for _, fn := range c {
		if fn == nil {
			continue
		}
		if v := fn(card); v != "" {
			return v
		}
	}
	return ""
}

// Text extracts the whitespace-collapsed text of the first element matching selector.
func Text(selector string) Extractor {
	return func(card *goquery.Selection) string {
		return CleanText(card.Find(selector).First().Text())
	}
}

// Attr extracts attribute attr of the first element matching selector. An
// empty selector reads the attribute from the card itself.
func Attr(selector, attr string) Extractor {
	return func(card *goquery.Selection) string {
		sel := card
		if selector != "" {
			sel = card.Find(selector).First()
		}
		v, _ := sel.Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Const always yields v. It is used as the last link of a chain to supply a default.
func Const(v string) Extractor {
	return func(*goquery.Selection) string { return v }
}

// TextChain builds a chain of Text extractors from selectors.
func TextChain(selectors ...string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, sel := range selectors {
		chain = append(chain, Text(sel))
	}
	return chain
}

// Parse loads rendered HTML into a goquery document.
func Parse(rendered string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Cards returns the matches of the first selector that finds at least one
// element, or an empty selection when none do.
func Cards(root *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return root.Find("__no_match__")
}

// Absolute resolves href against base. Absolute hrefs are returned unchanged
// and an empty href stays empty.
func Absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// StripQuery drops any query string from raw.
func StripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLText converts an HTML fragment, possibly entity-escaped as some job
// boards deliver it, into plain text.
func HTMLText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if strings.Contains(fragment, "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	return CleanText(doc.Text())
}

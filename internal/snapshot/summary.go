// Package snapshot captures the state of a page for failure diagnostics: a
// structured summary of what the storefront was showing, the document as
// markdown and a screenshot.
package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var homesTextPattern = regexp.MustCompile(`^(\d+) Homes?$`)

// Summary is what a reader needs to know about a storefront page at a glance
type Summary struct {
	URL           string   `json:"url,omitempty"`
	Title         string   `json:"title"`
	Headings      []string `json:"headings,omitempty"`
	ResultCount   int      `json:"result_count"`
	HomesText     string   `json:"homes_text,omitempty"`
	HomesCount    int      `json:"homes_count"`
	NoResults     bool     `json:"no_results"`
	ActiveFilters []string `json:"active_filters,omitempty"`
	SearchQuery   string   `json:"search_query,omitempty"`
}

// Summarize extracts the storefront-specific state from a rendered document
func Summarize(html string) (*Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	summary := &Summary{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		ResultCount: doc.Find(`[id^="homecard-"]`).Length(),
		HomesCount:  -1,
	}

	doc.Find("h1, h2").Each(func(i int, s *goquery.Selection) {
		if text := normalize(s.Text()); text != "" {
			summary.Headings = append(summary.Headings, text)
		}
	})

	doc.Find("body *").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := normalize(s.Text())
		if m := homesTextPattern.FindStringSubmatch(text); m != nil {
			summary.HomesText = text
			summary.HomesCount, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})

	summary.NoResults = strings.Contains(normalize(doc.Find("body").Text()), "No items match your filters")

	doc.Find("a.active").Each(func(i int, s *goquery.Selection) {
		text := normalize(s.Text())
		if text == "" || text == "Any" {
			return
		}
		if group, ok := s.Attr("data-filter"); ok {
			text = group + ": " + text
		}
		summary.ActiveFilters = append(summary.ActiveFilters, text)
	})

	if value, ok := doc.Find(`input[type="search"]`).First().Attr("value"); ok {
		summary.SearchQuery = value
	}

	return summary, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

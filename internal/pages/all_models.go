package pages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/poll"
)

// AllModelsPage drives the home catalogue: search, filters and results
type AllModelsPage struct {
	page
}

// NewAllModelsPage creates the page object over session
func NewAllModelsPage(session browser.Session, opts Options) *AllModelsPage {
	return &AllModelsPage{page: newPage(session, opts)}
}

// SearchModelByName types name into the search bar and waits for the input
// to hold it
func (p *AllModelsPage) SearchModelByName(ctx context.Context, name string) error {
	if err := p.fill(ctx, SearchBar, name); err != nil {
		return err
	}
	observe := func(ctx context.Context) (string, error) {
		return p.session.Value(ctx, SearchBar)
	}
	if _, err := poll.Until(ctx, observe, poll.Equals(name), p.policy("search bar value", p.opts.Timeouts.Default)); err != nil {
		return fmt.Errorf("search for %q: %w", name, err)
	}
	p.logger.Debug().Str("query", name).Msg("Searched models")
	return nil
}

// ClearSearchBar empties the search bar
func (p *AllModelsPage) ClearSearchBar(ctx context.Context) error {
	return p.fill(ctx, SearchBar, "")
}

// ResetFilters clicks "Reset Filters" and waits until every "Any" link is
// styled as the active choice
func (p *AllModelsPage) ResetFilters(ctx context.Context) error {
	if err := p.click(ctx, ResetFiltersButton, p.opts.Timeouts.Default); err != nil {
		return fmt.Errorf("reset filters: %w", err)
	}
	if err := p.session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
		return err
	}

	observe := func(ctx context.Context) (int, error) {
		return p.session.Count(ctx, AnyLinks)
	}
	count, err := poll.Until(ctx, observe, poll.GreaterThan(0), p.policy("Any links", p.opts.Timeouts.Default))
	if err != nil {
		return fmt.Errorf("reset filters: %w", err)
	}
	for i := range count {
		if err := p.cssEquals(ctx, AnyLinks.Nth(i), "border-color", ActiveFilterColor, p.opts.Timeouts.Default); err != nil {
			return fmt.Errorf("reset filters: %w", err)
		}
	}
	p.logger.Debug().Int("any_links", count).Msg("Filters reset")
	return nil
}

// SearchResultsCount returns how many home cards are rendered once the page
// has loaded
func (p *AllModelsPage) SearchResultsCount(ctx context.Context) (int, error) {
	if err := p.session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
		return 0, err
	}
	return p.session.Count(ctx, SearchResults)
}

// SetHomeFilter clicks the named filter link, waits for it to become active
// and returns the filtered result count
func (p *AllModelsPage) SetHomeFilter(ctx context.Context, name string) (int, error) {
	filter := FilterLink(name)
	if err := p.click(ctx, filter, p.opts.Timeouts.Default); err != nil {
		return 0, fmt.Errorf("set filter %q: %w", name, err)
	}
	if err := p.VerifyFilterEnabled(ctx, filter); err != nil {
		return 0, fmt.Errorf("set filter %q: %w", name, err)
	}
	count, err := p.SearchResultsCount(ctx)
	if err != nil {
		return 0, err
	}
	p.logger.Debug().Str("filter", name).Int("results", count).Msg("Home filter applied")
	return count, nil
}

// SelectFilter waits for the page to load then clicks loc until it takes
func (p *AllModelsPage) SelectFilter(ctx context.Context, loc browser.Locator) error {
	if err := p.session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
		return err
	}
	return p.click(ctx, loc, p.opts.Timeouts.SelectFilter)
}

// SetMonthlyPaymentFilter picks a monthly payment range in dollars
func (p *AllModelsPage) SetMonthlyPaymentFilter(ctx context.Context, min, max string) error {
	return p.selectRange(ctx, "monthly payment",
		DropdownButton("$500"), RangeOption("$"+min+" /m", 0),
		DropdownButton("$2700"), RangeOption("$"+max+" /m", 1),
	)
}

// SetSquareFootFilter picks a floor area range in square feet
func (p *AllModelsPage) SetSquareFootFilter(ctx context.Context, min, max string) error {
	return p.selectRange(ctx, "square footage",
		DropdownButton("400 /ft2"), RangeOption(min+" /ft2", 0),
		DropdownButton("2500 /ft2"), RangeOption(max+" /ft2", 1),
	)
}

// SetDimensionsFilter picks a maximum width and length in feet
func (p *AllModelsPage) SetDimensionsFilter(ctx context.Context, maxWidth, maxLength string) error {
	return p.selectRange(ctx, "dimensions",
		DropdownButton("32 ft"), RangeOption(maxWidth+" ft", 0),
		DropdownButton("80 ft"), RangeOption(maxLength+" ft", 0),
	)
}

// selectRange opens each dropdown in turn and clicks the option after it
func (p *AllModelsPage) selectRange(ctx context.Context, name string, steps ...browser.Locator) error {
	for _, loc := range steps {
		if err := p.SelectFilter(ctx, loc); err != nil {
			return fmt.Errorf("set %s filter: %w", name, err)
		}
	}
	p.logger.Debug().Str("filter", name).Msg("Range filter applied")
	return nil
}

// SelectBedrooms activates the bedroom count filter and returns the result count
func (p *AllModelsPage) SelectBedrooms(ctx context.Context, count string) (int, error) {
	return p.selectCount(ctx, "bedrooms", BedroomFilter(count))
}

// SelectBathrooms activates the bathroom count filter and returns the result count
func (p *AllModelsPage) SelectBathrooms(ctx context.Context, count string) (int, error) {
	return p.selectCount(ctx, "bathrooms", BathroomFilter(count))
}

func (p *AllModelsPage) selectCount(ctx context.Context, name string, filter browser.Locator) (int, error) {
	if err := p.session.WaitForLoad(ctx, browser.LoadStateDOMContentLoaded); err != nil {
		return 0, err
	}
	err := poll.Pass(ctx, func(ctx context.Context) error {
		if err := p.session.Click(ctx, filter); err != nil {
			return err
		}
		return p.VerifyFilterEnabled(ctx, filter)
	}, p.policy("select "+name, p.opts.Timeouts.BedBath))
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", name, err)
	}
	return p.SearchResultsCount(ctx)
}

// VerifyFilterEnabled waits for filter to carry the active border colour
func (p *AllModelsPage) VerifyFilterEnabled(ctx context.Context, filter browser.Locator) error {
	return p.cssEquals(ctx, filter, "border-color", ActiveFilterColor, p.opts.Timeouts.FilterEnabled)
}

// AssertNoResults waits for the empty state: the message shown and no cards
func (p *AllModelsPage) AssertNoResults(ctx context.Context) error {
	err := poll.Pass(ctx, func(ctx context.Context) error {
		visible, err := p.session.Visible(ctx, NoResultsMessage)
		if err != nil {
			return err
		}
		if !visible {
			return browser.NotVisible(NoResultsMessage)
		}
		count, err := p.session.Count(ctx, SearchResults)
		if err != nil {
			return err
		}
		if count != 0 {
			return poll.Transient(fmt.Errorf("%d results still shown", count))
		}
		return nil
	}, p.policy("no results", p.opts.Timeouts.NoResults))
	if err != nil {
		return fmt.Errorf("assert no results: %w", err)
	}
	return nil
}

// WaitForUpdatedResults waits for the result count to move away from initial
// and returns the new count
func (p *AllModelsPage) WaitForUpdatedResults(ctx context.Context, initial int) (int, error) {
	count, err := poll.Until(ctx, p.resultCount, poll.NotEquals(initial), p.policy("result count", p.opts.Timeouts.UpdatedResults))
	if err != nil {
		return 0, err
	}
	p.logger.Debug().Int("initial", initial).Int("updated", count).Msg("Results updated")
	return count, nil
}

// ExpectHomesTextVisible waits for the "<n> Home(s)" summary to show
func (p *AllModelsPage) ExpectHomesTextVisible(ctx context.Context, n int) error {
	return p.visible(ctx, HomesText(n), p.opts.Timeouts.Default)
}

// ExpectHomesTextHidden waits for the "<n> Home(s)" summary to go away
func (p *AllModelsPage) ExpectHomesTextHidden(ctx context.Context, n int) error {
	return p.hidden(ctx, HomesText(n), p.opts.Timeouts.Default)
}

// ExpectResultCount waits for the number of result cards to satisfy expect
func (p *AllModelsPage) ExpectResultCount(ctx context.Context, expect poll.Expectation[int]) (int, error) {
	return poll.Until(ctx, p.resultCount, expect, p.policy("result count", p.opts.Timeouts.Default))
}

// ExpectResultsContain waits for some result card to contain text
func (p *AllModelsPage) ExpectResultsContain(ctx context.Context, text string) error {
	observe := func(ctx context.Context) (string, error) {
		texts, err := p.session.Texts(ctx, SearchResults)
		if err != nil {
			return "", err
		}
		return strings.Join(texts, "\n"), nil
	}
	_, err := poll.Until(ctx, observe, poll.Contains(text), p.policy("result texts", p.opts.Timeouts.Default))
	return err
}

// ExpectFirstResultContains waits for the first result card to contain text
func (p *AllModelsPage) ExpectFirstResultContains(ctx context.Context, text string) error {
	first := SearchResults.First()
	observe := func(ctx context.Context) (string, error) {
		return p.session.Text(ctx, first)
	}
	_, err := poll.Until(ctx, observe, poll.Contains(text), p.policy(first.String(), p.opts.Timeouts.Default))
	return err
}

// ExpectURL waits for the current URL to match re
func (p *AllModelsPage) ExpectURL(ctx context.Context, re *regexp.Regexp) error {
	observe := func(ctx context.Context) (string, error) {
		return p.session.URL(ctx)
	}
	_, err := poll.Until(ctx, observe, poll.Matches(re), p.policy("url", p.opts.Timeouts.Navigation))
	return err
}

func (p *AllModelsPage) resultCount(ctx context.Context) (int, error) {
	return p.session.Count(ctx, SearchResults)
}

func (p *AllModelsPage) fill(ctx context.Context, loc browser.Locator, text string) error {
	return poll.Pass(ctx, func(ctx context.Context) error {
		return p.session.Fill(ctx, loc, text)
	}, p.policy("fill "+loc.String(), p.opts.Timeouts.Default))
}

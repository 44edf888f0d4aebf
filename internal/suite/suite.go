// Package suite is the storefront scenario catalogue: home filters, bedroom
// and bathroom combinations, model search and header navigation.
package suite

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/poll"
	"github.com/ternarybob/storefront-e2e/internal/scenario"
)

// Group names
const (
	HomeFilters     = "Home Filters Tests"
	ValidBedBath    = "Valid Bed and Bath Combinations"
	InvalidBedBath  = "Invalid Bed and Bath Combinations"
	AllModelsSearch = "All Models Page Tests"
	Navigation      = "Navigation and heading validation"
)

// Paths are the storefront pages the catalogue starts from
type Paths struct {
	Home      string
	AllModels string
}

// PathsFromConfig reads the entry pages from configuration
func PathsFromConfig(config *common.Config) Paths {
	return Paths{Home: config.Site.HomePath, AllModels: config.Site.AllModelsPath}
}

// Catalogue returns every group, with the bedroom/bathroom groups expanded
// from the fixture set
func Catalogue(set *fixtures.Set, paths Paths) []scenario.Group {
	return []scenario.Group{
		homeFilters(paths),
		validBedBath(set.Valid, paths),
		invalidBedBath(set.Invalid, paths),
		allModelsSearch(paths),
		navigation(set.Navigation, paths),
	}
}

func openAllModels(paths Paths) scenario.Func {
	return func(ctx context.Context, env *scenario.Env) error {
		return env.Nav.NavigateToPage(ctx, paths.AllModels)
	}
}

func resetFilters(ctx context.Context, env *scenario.Env) error {
	return env.AllModels.ResetFilters(ctx)
}

// initialResults reads the unfiltered count and checks the summary shows it
func initialResults(ctx context.Context, env *scenario.Env) (int, error) {
	initial, err := env.AllModels.SearchResultsCount(ctx)
	if err != nil {
		return 0, err
	}
	env.Logf("initial results: %d", initial)
	if err := env.AllModels.ExpectHomesTextVisible(ctx, initial); err != nil {
		return 0, err
	}
	return initial, nil
}

func homeFilters(paths Paths) scenario.Group {
	return scenario.Group{
		Name:       HomeFilters,
		Serial:     true,
		BeforeEach: openAllModels(paths),
		AfterEach:  resetFilters,
		Scenarios: []scenario.Scenario{
			{Name: "Filter by sections & reset filters", Run: filterBySections},
			{Name: "Filter by Manufacturer", Run: filterByManufacturer},
			{Name: "Filter by square footage", Run: filterBySquareFootage},
			{Name: "Filter by Dimensions", Run: filterByDimensions},
			{Name: "Out of range filtering returns no results", Run: outOfRangeFiltering},
		},
	}
}

// applyHomeFilter sets a filter link and checks the results and URL follow it
func applyHomeFilter(ctx context.Context, env *scenario.Env, initial int, name string, url *regexp.Regexp) error {
	page := env.AllModels

	expected, err := page.SetHomeFilter(ctx, name)
	if err != nil {
		return err
	}
	env.Logf("%s filter shows %d results", name, expected)
	if err := page.ExpectHomesTextHidden(ctx, initial); err != nil {
		return err
	}
	if _, err := page.WaitForUpdatedResults(ctx, initial); err != nil {
		return err
	}
	if _, err := page.ExpectResultCount(ctx, poll.Equals(expected)); err != nil {
		return err
	}
	if _, err := page.ExpectResultCount(ctx, poll.NotEquals(initial)); err != nil {
		return err
	}
	return page.ExpectURL(ctx, url)
}

func filterBySections(ctx context.Context, env *scenario.Env) error {
	page := env.AllModels
	initial, err := initialResults(ctx, env)
	if err != nil {
		return err
	}

	if err := env.Step(ctx, "single section", func(ctx context.Context) error {
		return applyHomeFilter(ctx, env, initial, "Single", regexp.MustCompile(`sectionCount=1`))
	}); err != nil {
		return err
	}

	if err := env.Step(ctx, "reset", func(ctx context.Context) error {
		if err := page.ResetFilters(ctx); err != nil {
			return err
		}
		return page.ExpectHomesTextVisible(ctx, initial)
	}); err != nil {
		return err
	}

	return env.Step(ctx, "multi section", func(ctx context.Context) error {
		if _, err := page.SetHomeFilter(ctx, "Multi"); err != nil {
			return err
		}
		multi, err := page.WaitForUpdatedResults(ctx, initial)
		if err != nil {
			return err
		}
		env.Logf("Multi filter shows %d results", multi)
		if _, err := page.ExpectResultCount(ctx, poll.LessOrEqual(initial)); err != nil {
			return err
		}
		return page.ExpectURL(ctx, regexp.MustCompile(`sectionCount=2`))
	})
}

func filterByManufacturer(ctx context.Context, env *scenario.Env) error {
	initial, err := initialResults(ctx, env)
	if err != nil {
		return err
	}
	return applyHomeFilter(ctx, env, initial, "Oak Creek", regexp.MustCompile(`manufacturer=oak-creek`))
}

// rangeFilter applies a dropdown range and waits for the results to change
func rangeFilter(apply func(ctx context.Context, env *scenario.Env) error) scenario.Func {
	return func(ctx context.Context, env *scenario.Env) error {
		page := env.AllModels
		initial, err := initialResults(ctx, env)
		if err != nil {
			return err
		}
		if err := apply(ctx, env); err != nil {
			return err
		}
		if err := page.ExpectHomesTextHidden(ctx, initial); err != nil {
			return err
		}
		updated, err := page.WaitForUpdatedResults(ctx, initial)
		if err != nil {
			return err
		}
		env.Logf("results changed from %d to %d", initial, updated)
		_, err = page.ExpectResultCount(ctx, poll.NotEquals(initial))
		return err
	}
}

var filterBySquareFootage = rangeFilter(func(ctx context.Context, env *scenario.Env) error {
	return env.AllModels.SetSquareFootFilter(ctx, "900", "1500")
})

var filterByDimensions = rangeFilter(func(ctx context.Context, env *scenario.Env) error {
	return env.AllModels.SetDimensionsFilter(ctx, "18", "70")
})

func outOfRangeFiltering(ctx context.Context, env *scenario.Env) error {
	page := env.AllModels

	var initial int
	if err := env.Step(ctx, "search Clayton", func(ctx context.Context) error {
		if err := page.SearchModelByName(ctx, "Clayton"); err != nil {
			return err
		}
		if err := page.ExpectFirstResultContains(ctx, "Clayton"); err != nil {
			return err
		}
		if _, err := page.ExpectResultCount(ctx, poll.Equals(50)); err != nil {
			return err
		}
		var err error
		initial, err = initialResults(ctx, env)
		return err
	}); err != nil {
		return err
	}

	return env.Step(ctx, "monthly payment out of range", func(ctx context.Context) error {
		if err := page.SetMonthlyPaymentFilter(ctx, "1800", "2500"); err != nil {
			return err
		}
		if err := env.Session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
			return err
		}
		if err := page.ExpectHomesTextHidden(ctx, initial); err != nil {
			return err
		}
		if _, err := page.WaitForUpdatedResults(ctx, initial); err != nil {
			return err
		}
		return page.AssertNoResults(ctx)
	})
}

// selectBedBath applies both count filters and returns the initial count
func selectBedBath(ctx context.Context, env *scenario.Env, combo fixtures.BedBath) (int, error) {
	page := env.AllModels
	initial, err := initialResults(ctx, env)
	if err != nil {
		return 0, err
	}
	if _, err := page.SelectBedrooms(ctx, combo.Bedroom.Value); err != nil {
		return 0, err
	}
	if _, err := page.SelectBathrooms(ctx, combo.Bathroom.Value); err != nil {
		return 0, err
	}
	if _, err := page.WaitForUpdatedResults(ctx, initial); err != nil {
		return 0, err
	}
	return initial, nil
}

func validBedBath(combos []fixtures.BedBath, paths Paths) scenario.Group {
	group := scenario.Group{
		Name:       ValidBedBath,
		Serial:     true,
		BeforeEach: openAllModels(paths),
		AfterEach:  resetFilters,
	}
	for _, combo := range combos {
		group.Scenarios = append(group.Scenarios, scenario.Scenario{
			Name: fmt.Sprintf("Filter by %s bedroom(s) and %s bathroom(s)", combo.Bedroom.Value, combo.Bathroom.Value),
			Run: func(ctx context.Context, env *scenario.Env) error {
				initial, err := selectBedBath(ctx, env, combo)
				if err != nil {
					return err
				}
				filtered, err := env.AllModels.ExpectResultCount(ctx, poll.LessOrEqual(initial))
				if err != nil {
					return err
				}
				env.Logf("%s: %d of %d results", combo, filtered, initial)
				return nil
			},
		})
	}
	return group
}

func invalidBedBath(combos []fixtures.BedBath, paths Paths) scenario.Group {
	group := scenario.Group{
		Name:       InvalidBedBath,
		Serial:     true,
		BeforeEach: openAllModels(paths),
		AfterEach:  resetFilters,
	}
	for _, combo := range combos {
		group.Scenarios = append(group.Scenarios, scenario.Scenario{
			Name: fmt.Sprintf("Invalid combination: %s", combo),
			Run: func(ctx context.Context, env *scenario.Env) error {
				if _, err := selectBedBath(ctx, env, combo); err != nil {
					return err
				}
				return env.AllModels.AssertNoResults(ctx)
			},
		})
	}
	return group
}

func allModelsSearch(paths Paths) scenario.Group {
	return scenario.Group{
		Name:       AllModelsSearch,
		BeforeEach: openAllModels(paths),
		Scenarios: []scenario.Scenario{
			{Name: "Search for home model containing text", Run: searchContainingText},
			{Name: "Invalid search returns no results", Run: invalidSearch},
			{Name: "Clearing search bar returns all results", Run: clearSearch},
		},
	}
}

func searchContainingText(ctx context.Context, env *scenario.Env) error {
	const input = "austin"
	page := env.AllModels

	return env.Step(ctx, "Search for model containing text: "+input, func(ctx context.Context) error {
		if err := page.SearchModelByName(ctx, input); err != nil {
			return err
		}
		if _, err := page.ExpectResultCount(ctx, poll.Equals(1)); err != nil {
			return err
		}
		if err := page.ExpectResultsContain(ctx, "RGN The Braustin"); err != nil {
			return err
		}
		return page.ExpectResultsContain(ctx, input)
	})
}

func invalidSearch(ctx context.Context, env *scenario.Env) error {
	return env.Step(ctx, "Perform an invalid search", func(ctx context.Context) error {
		if err := env.AllModels.SearchModelByName(ctx, "NonexistentModelName"); err != nil {
			return err
		}
		return env.AllModels.AssertNoResults(ctx)
	})
}

func clearSearch(ctx context.Context, env *scenario.Env) error {
	page := env.AllModels

	var unfiltered int
	if err := env.Step(ctx, "Get unfiltered results count", func(ctx context.Context) error {
		var err error
		unfiltered, err = page.SearchResultsCount(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := env.Step(ctx, "Perform a search", func(ctx context.Context) error {
		if err := page.SearchModelByName(ctx, "Clayton Tempo"); err != nil {
			return err
		}
		_, err := page.ExpectResultCount(ctx, poll.Equals(10))
		return err
	}); err != nil {
		return err
	}

	return env.Step(ctx, "Clear search bar and verify all results", func(ctx context.Context) error {
		if err := page.ClearSearchBar(ctx); err != nil {
			return err
		}
		_, err := page.ExpectResultCount(ctx, poll.Equals(unfiltered))
		return err
	})
}

func navigation(nav fixtures.Navigation, paths Paths) scenario.Group {
	return scenario.Group{
		Name: Navigation,
		Scenarios: []scenario.Scenario{{
			Name: "Validate navigation on all main links and expected content",
			Run: func(ctx context.Context, env *scenario.Env) error {
				if err := env.Nav.NavigateToPage(ctx, paths.Home); err != nil {
					return err
				}
				for _, menu := range nav.Menus {
					if err := validateMenu(ctx, env, menu); err != nil {
						return err
					}
				}
				return nil
			},
		}},
	}
}

func validateMenu(ctx context.Context, env *scenario.Env, menu fixtures.Menu) error {
	if !menu.Dropdown {
		env.Logf("Validating direct links")
		for _, link := range menu.Links {
			if err := env.Nav.NavigateAndValidateContent(ctx, link.Href, link.Heading); err != nil {
				return err
			}
		}
		return nil
	}

	env.Logf("Validating menu: %s", menu.Name)
	return env.Step(ctx, "menu "+menu.Name, func(ctx context.Context) error {
		if err := env.Nav.HoverOverNavButton(ctx, menu.Name); err != nil {
			return err
		}
		if err := env.Nav.ValidateSublinksVisible(ctx, menu.Hrefs()); err != nil {
			return err
		}
		for _, link := range menu.Links {
			if err := env.Nav.NavigateFromMenu(ctx, menu, link); err != nil {
				return err
			}
		}
		return nil
	})
}

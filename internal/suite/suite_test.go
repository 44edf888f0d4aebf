package suite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/browser/browsertest"
	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/pages"
	"github.com/ternarybob/storefront-e2e/internal/poll"
	"github.com/ternarybob/storefront-e2e/internal/scenario"
)

func defaultSet(t *testing.T) *fixtures.Set {
	t.Helper()
	set, err := fixtures.Default()
	require.NoError(t, err)
	return set
}

func TestCatalogue(t *testing.T) {
	set := defaultSet(t)
	groups := Catalogue(set, PathsFromConfig(common.NewDefaultConfig()))

	require.Len(t, groups, 5)
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	assert.Equal(t, []string{HomeFilters, ValidBedBath, InvalidBedBath, AllModelsSearch, Navigation}, names)

	assert.True(t, groups[0].Serial)
	assert.Len(t, groups[0].Scenarios, 5)
	assert.NotNil(t, groups[0].BeforeEach)
	assert.NotNil(t, groups[0].AfterEach)

	require.Len(t, groups[1].Scenarios, len(set.Valid))
	assert.Equal(t, "Filter by 1 bedroom(s) and 1 bathroom(s)", groups[1].Scenarios[0].Name)
	require.Len(t, groups[2].Scenarios, len(set.Invalid))
	assert.Equal(t, "Invalid combination: 1 bedroom(s), 2 bathroom(s)", groups[2].Scenarios[0].Name)

	assert.Len(t, groups[3].Scenarios, 3)
	assert.Nil(t, groups[3].AfterEach)
	assert.Len(t, groups[4].Scenarios, 1)
}

func runnerOptions(t *testing.T) scenario.Options {
	const wait = 500 * time.Millisecond
	return scenario.Options{
		BaseURL:         "http://store.test",
		ScenarioTimeout: 10 * time.Second,
		HookTimeout:     2 * time.Second,
		ArtifactsDir:    t.TempDir(),
		Pages: pages.Options{
			Timeouts: pages.Timeouts{
				Default:        wait,
				FilterEnabled:  wait,
				UpdatedResults: wait,
				NoResults:      wait,
				BedBath:        wait,
				SelectFilter:   wait,
				Navigation:     wait,
			},
			Poll: poll.Policy{Interval: 10 * time.Millisecond},
		},
	}
}

func run(t *testing.T, groups []scenario.Group, setup func(s *browsertest.Session)) (*scenario.Run, *browsertest.Session) {
	t.Helper()
	var session *browsertest.Session
	factory := scenario.SessionFactoryFunc(func(ctx context.Context) (browser.Session, error) {
		session = browsertest.New()
		setup(session)
		return session, nil
	})
	r := scenario.NewRunner(factory, runnerOptions(t), arbor.NewNoOpLogger())
	return r.Run(context.Background(), groups, nil), session
}

// scriptHeader models a header whose dropdowns open on hover and close on
// every navigation
func scriptHeader(s *browsertest.Session, nav fixtures.Navigation) {
	closeMenus := func(s *browsertest.Session) {
		for _, menu := range nav.Menus {
			if !menu.Dropdown {
				continue
			}
			for _, link := range menu.Links {
				s.Update(pages.VisibleLink(link.Href), func(el *browsertest.Element) { el.Hidden = true })
				s.Update(pages.MenuItemLink(link.Href), func(el *browsertest.Element) { el.Hidden = true })
			}
		}
	}

	s.Set(pages.HomeLogo, browsertest.Element{})
	closeMenus(s)
	for _, menu := range nav.Menus {
		for _, link := range menu.Links {
			if !menu.Dropdown {
				s.Set(pages.MenuItemLink(link.Href), browsertest.Element{})
			}
			s.OnClick(pages.MenuItemLink(link.Href), func(s *browsertest.Session) {
				s.SetURL(link.Href)
				s.Set(pages.Heading(link.Heading), browsertest.Element{Text: link.Heading})
				closeMenus(s)
			})
		}
		if !menu.Dropdown {
			continue
		}
		s.Set(pages.NavButton(menu.Name), browsertest.Element{Text: menu.Name})
		s.OnHover(pages.NavButton(menu.Name), func(s *browsertest.Session) {
			closeMenus(s)
			for _, link := range menu.Links {
				s.Update(pages.VisibleLink(link.Href), func(el *browsertest.Element) { el.Hidden = false })
				s.Update(pages.MenuItemLink(link.Href), func(el *browsertest.Element) { el.Hidden = false })
			}
		})
	}
}

func TestNavigationScenario(t *testing.T) {
	set := defaultSet(t)
	groups := []scenario.Group{navigation(set.Navigation, Paths{Home: "/"})}

	result, s := run(t, groups, func(s *browsertest.Session) { scriptHeader(s, set.Navigation) })

	require.Len(t, result.Results, 1)
	got := result.Results[0]
	require.Equal(t, scenario.StatusPassed, got.Status, "failure: %+v", got.Failure)

	// each dropdown is hovered once up front and reopened for every later link
	for _, menu := range set.Navigation.Menus {
		if menu.Dropdown {
			assert.Equal(t, len(menu.Links), s.ActionCount("hover "+pages.NavButton(menu.Name).String()), menu.Name)
		}
		for _, link := range menu.Links {
			assert.Equal(t, 1, s.ActionCount("click "+pages.MenuItemLink(link.Href).String()), link.Href)
		}
	}
}

func TestNavigationScenarioReportsMissingHeading(t *testing.T) {
	set := defaultSet(t)
	groups := []scenario.Group{navigation(set.Navigation, Paths{Home: "/"})}
	first := set.Navigation.Menus[0].Links[0]

	result, _ := run(t, groups, func(s *browsertest.Session) {
		scriptHeader(s, set.Navigation)
		s.OnClick(pages.MenuItemLink(first.Href), func(s *browsertest.Session) {
			s.Remove(pages.Heading(first.Heading))
		})
	})

	got := result.Results[0]
	require.Equal(t, scenario.StatusFailed, got.Status)
	assert.Equal(t, scenario.FailureTimeout, got.Failure.Kind)
	assert.Equal(t, "menu "+set.Navigation.Menus[0].Name, got.Failure.Step)
	assert.Contains(t, got.Failure.Message, first.Href)
}

// scriptListing models the all-models page with 50 homes where any bathroom
// count above the bedroom count empties the listing
func scriptListing(s *browsertest.Session, bedrooms, bathrooms string) {
	reset := func(s *browsertest.Session) {
		s.SetCount(pages.SearchResults, 50)
		s.Set(pages.HomesText(50), browsertest.Element{Text: "50 Homes"})
		s.Remove(pages.NoResultsMessage)
		s.SetCount(pages.AnyLinks, 3)
		s.Set(pages.AnyLinks, browsertest.Element{CSS: map[string]string{"border-color": pages.ActiveFilterColor}})
	}
	active := browsertest.Element{CSS: map[string]string{"border-color": pages.ActiveFilterColor}}

	s.OnNavigate(func(s *browsertest.Session, url string) { reset(s) })
	s.Set(pages.ResetFiltersButton, browsertest.Element{})
	s.OnClick(pages.ResetFiltersButton, reset)

	s.Set(pages.BedroomFilter(bedrooms), browsertest.Element{})
	s.OnClick(pages.BedroomFilter(bedrooms), func(s *browsertest.Session) {
		s.Set(pages.BedroomFilter(bedrooms), active)
	})
	s.Set(pages.BathroomFilter(bathrooms), browsertest.Element{})
	s.OnClick(pages.BathroomFilter(bathrooms), func(s *browsertest.Session) {
		s.Set(pages.BathroomFilter(bathrooms), active)
		s.SetCount(pages.SearchResults, 0)
		s.Remove(pages.HomesText(50))
		s.Set(pages.NoResultsMessage, browsertest.Element{})
	})
}

func TestInvalidBedBathScenario(t *testing.T) {
	combo := fixtures.BedBath{Bedroom: fixtures.Count{Value: "1"}, Bathroom: fixtures.Count{Value: "3"}}
	groups := []scenario.Group{invalidBedBath([]fixtures.BedBath{combo}, Paths{AllModels: "/shop/all-models"})}

	result, s := run(t, groups, func(s *browsertest.Session) { scriptListing(s, "1", "3") })

	require.Len(t, result.Results, 1)
	got := result.Results[0]
	require.Equal(t, scenario.StatusPassed, got.Status, "failure: %+v", got.Failure)
	assert.Equal(t, "Invalid combination: 1 bedroom(s), 3 bathroom(s)", got.Name)
	assert.Equal(t, 1, s.ActionCount("navigate /shop/all-models"))
	assert.Equal(t, 1, s.ActionCount("click "+pages.ResetFiltersButton.String()))
}

func TestValidBedBathScenarioFailsOnEmptyListing(t *testing.T) {
	combo := fixtures.BedBath{Bedroom: fixtures.Count{Value: "1"}, Bathroom: fixtures.Count{Value: "3"}}
	groups := []scenario.Group{validBedBath([]fixtures.BedBath{combo, combo}, Paths{AllModels: "/shop/all-models"})}

	// the scripted listing empties, which a valid combination tolerates;
	// dropping the bathroom link makes the first scenario fail instead
	result, _ := run(t, groups, func(s *browsertest.Session) {
		scriptListing(s, "1", "3")
		s.Remove(pages.BathroomFilter("3"))
	})

	require.Len(t, result.Results, 2)
	assert.Equal(t, scenario.StatusFailed, result.Results[0].Status)
	assert.Contains(t, result.Results[0].Failure.Message, "select bathrooms")
	assert.Equal(t, scenario.StatusSkipped, result.Results[1].Status)
}

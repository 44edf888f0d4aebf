package pages

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/storefront-e2e/internal/browser"
)

// ActiveFilterColor is the border colour of a selected filter link
const ActiveFilterColor = "rgb(0, 149, 250)"

// Locators shared by the storefront pages
var (
	SearchBar          = browser.CSS(`input[type="search"], [role="searchbox"]`).First()
	ResetFiltersButton = browser.CSS("a").WithExactText("Reset Filters").First()
	NoResultsMessage   = browser.CSS("body *").WithText("No items match your filters").First()
	SearchResults      = browser.CSS(`[id^="homecard-"]`)
	AnyLinks           = browser.CSS("a").WithExactText("Any")
	HomeLogo           = browser.CSS(`#header [aria-label="Link to home page"]`).First()
)

// FilterLink is a filter link with the exact visible name, e.g. "Single"
func FilterLink(name string) browser.Locator {
	return browser.CSS("a").WithExactText(name).First()
}

// HomesText matches the "<n> Home(s)" result summary for exactly n results
func HomesText(n int) browser.Locator {
	return browser.CSS("body *").WithPattern(regexp.MustCompile(fmt.Sprintf(`^%d Home(s)?$`, n)))
}

// DropdownButton is the range dropdown toggle whose label contains text
func DropdownButton(text string) browser.Locator {
	return browser.CSS("button").WithText(text).First()
}

// RangeOption is the nth range option span containing text
func RangeOption(text string, nth int) browser.Locator {
	return browser.XPath(fmt.Sprintf(`//span[contains(text(), %s)]`, xpathLiteral(text))).Nth(nth)
}

// BedroomFilter is the bedroom count link in the Bedrooms group
func BedroomFilter(count string) browser.Locator {
	return countFilter("Bedrooms", "bedroomCount", count)
}

// BathroomFilter is the bathroom count link in the Baths group
func BathroomFilter(count string) browser.Locator {
	return countFilter("Baths", "bathroomCount", count)
}

func countFilter(label, param, count string) browser.Locator {
	return browser.XPath(fmt.Sprintf(
		`//span[normalize-space()=%s]/following-sibling::div//a[contains(@href, %s)]`,
		xpathLiteral(label), xpathLiteral(param+"="+count),
	)).First()
}

// NavButton is the header menu button with the exact name
func NavButton(name string) browser.Locator {
	return browser.CSS("button").WithExactText(name).First()
}

// VisibleLink is the first visible anchor pointing at href
func VisibleLink(href string) browser.Locator {
	return browser.CSS(fmt.Sprintf(`a[href=%s]`, strconv.Quote(href))).Visible().First()
}

// MenuItemLink is the visible menu item anchor pointing at href
func MenuItemLink(href string) browser.Locator {
	return browser.CSS(fmt.Sprintf(`li[role="menuitem"] a[href=%s]`, strconv.Quote(href))).Visible().First()
}

// Heading is the first h1 or h2 containing text
func Heading(text string) browser.Locator {
	return browser.CSS("h1, h2").WithText(text).First()
}

// xpathLiteral quotes s for use inside an XPath expression
func xpathLiteral(s string) string {
	if !strings.ContainsRune(s, '\'') {
		return "'" + s + "'"
	}
	if !strings.ContainsRune(s, '"') {
		return `"` + s + `"`
	}
	// concat('a', "'", 'b') for strings holding both quote kinds
	out := "concat("
	part := ""
	for _, r := range s {
		if r == '\'' {
			out += "'" + part + `', "'", `
			part = ""
			continue
		}
		part += string(r)
	}
	return out + "'" + part + "')"
}

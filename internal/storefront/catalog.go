// Package storefront is a self-contained demo of the home-listing storefront
// the suite exercises. It serves the header navigation, content pages and an
// all-models listing with search, link filters and range dropdowns.
package storefront

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageSize caps the number of cards the listing renders
const PageSize = 50

// Home is one model in the catalogue
type Home struct {
	ID             int
	Name           string
	Manufacturer   Manufacturer
	Sections       int // 1 = single-section, 2 = multi-section
	Bedrooms       int
	Bathrooms      int
	SquareFeet     int
	Width          int // feet
	Length         int // feet
	MonthlyPayment int // dollars
}

// Manufacturer is a home builder and its query-string slug
type Manufacturer struct {
	Name string
	Slug string
}

var manufacturers = []Manufacturer{
	{Name: "Champion", Slug: "champion"},
	{Name: "Clayton", Slug: "clayton"},
	{Name: "Fleetwood", Slug: "fleetwood"},
	{Name: "Oak Creek", Slug: "oak-creek"},
	{Name: "RGN", Slug: "rgn"},
}

// bedBath cycles through the layouts the catalogue offers; no layout has
// more bathrooms than bedrooms
var bedBath = [][2]int{{1, 1}, {2, 1}, {2, 2}, {3, 2}, {3, 2}, {4, 2}, {3, 1}, {4, 3}, {5, 3}}

// Catalogue returns the demo catalogue in listing order
func Catalogue() []Home {
	var homes []Home
	add := func(m Manufacturer, name string, payment func(i int) int) {
		i := len(homes)
		layout := bedBath[i%len(bedBath)]
		home := Home{
			ID:             i + 1,
			Name:           name,
			Manufacturer:   m,
			Sections:       1 + i%2,
			Bedrooms:       layout[0],
			Bathrooms:      layout[1],
			SquareFeet:     400 + (i*137)%2100,
			Length:         40 + (i*7)%41,
			MonthlyPayment: payment(i),
		}
		if home.Sections == 1 {
			home.Width = []int{14, 16, 18}[i%3]
		} else {
			home.Width = []int{24, 28, 32}[i%3]
		}
		homes = append(homes, home)
	}
	anyPayment := func(i int) int { return 500 + (i*97)%2200 }
	// Clayton homes all stay under $1800/mo
	clayton := func(i int) int { return 500 + (i*53)%1300 }

	champion, claytonM, fleetwood, oakCreek, rgn := manufacturers[0], manufacturers[1], manufacturers[2], manufacturers[3], manufacturers[4]
	for n := 1; n <= 12; n++ {
		add(champion, fmt.Sprintf("Champion Aurora %d", n), anyPayment)
	}
	for n := 1; n <= 10; n++ {
		add(claytonM, fmt.Sprintf("Clayton Tempo %d", n), clayton)
	}
	for n := 1; n <= 45; n++ {
		add(claytonM, fmt.Sprintf("Clayton Anthem %d", n), clayton)
	}
	for n := 1; n <= 12; n++ {
		add(fleetwood, fmt.Sprintf("Fleetwood Ridge %d", n), anyPayment)
	}
	for n := 1; n <= 10; n++ {
		add(oakCreek, fmt.Sprintf("Oak Creek Sierra %d", n), anyPayment)
	}
	add(rgn, "RGN The Braustin", anyPayment)
	return homes
}

// Query is the listing state carried in the URL
type Query struct {
	Search       string
	Sections     int
	Manufacturer string
	Bedrooms     int
	Bathrooms    int
	MinPayment   int
	MaxPayment   int
	MinSqft      int
	MaxSqft      int
	MaxWidth     int
	MaxLength    int
}

// Query parameter names
const (
	ParamSearch       = "q"
	ParamSections     = "sectionCount"
	ParamManufacturer = "manufacturer"
	ParamBedrooms     = "bedroomCount"
	ParamBathrooms    = "bathroomCount"
	ParamMinPayment   = "minPayment"
	ParamMaxPayment   = "maxPayment"
	ParamMinSqft      = "minSqft"
	ParamMaxSqft      = "maxSqft"
	ParamMaxWidth     = "maxWidth"
	ParamMaxLength    = "maxLength"
)

// ParseQuery reads listing state from values; malformed numbers are ignored
func ParseQuery(values url.Values) Query {
	num := func(key string) int {
		n, err := strconv.Atoi(values.Get(key))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return Query{
		Search:       strings.TrimSpace(values.Get(ParamSearch)),
		Sections:     num(ParamSections),
		Manufacturer: values.Get(ParamManufacturer),
		Bedrooms:     num(ParamBedrooms),
		Bathrooms:    num(ParamBathrooms),
		MinPayment:   num(ParamMinPayment),
		MaxPayment:   num(ParamMaxPayment),
		MinSqft:      num(ParamMinSqft),
		MaxSqft:      num(ParamMaxSqft),
		MaxWidth:     num(ParamMaxWidth),
		MaxLength:    num(ParamMaxLength),
	}
}

// Matches reports whether home satisfies every set field of q
func (q Query) Matches(home Home) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		haystack := strings.ToLower(home.Name + " " + home.Manufacturer.Name)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	switch {
	case q.Sections > 0 && home.Sections != q.Sections:
		return false
	case q.Manufacturer != "" && home.Manufacturer.Slug != q.Manufacturer:
		return false
	case q.Bedrooms > 0 && home.Bedrooms != q.Bedrooms:
		return false
	case q.Bathrooms > 0 && home.Bathrooms != q.Bathrooms:
		return false
	case q.MinPayment > 0 && home.MonthlyPayment < q.MinPayment:
		return false
	case q.MaxPayment > 0 && home.MonthlyPayment > q.MaxPayment:
		return false
	case q.MinSqft > 0 && home.SquareFeet < q.MinSqft:
		return false
	case q.MaxSqft > 0 && home.SquareFeet > q.MaxSqft:
		return false
	case q.MaxWidth > 0 && home.Width > q.MaxWidth:
		return false
	case q.MaxLength > 0 && home.Length > q.MaxLength:
		return false
	}
	return true
}

// Filter returns the homes matching q, in catalogue order
func Filter(homes []Home, q Query) []Home {
	var out []Home
	for _, home := range homes {
		if q.Matches(home) {
			out = append(out, home)
		}
	}
	return out
}

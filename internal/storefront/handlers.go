package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/storefront-e2e/internal/fixtures"
)

type pageView struct {
	Title   string
	Heading string
	Menus   []fixtures.Menu
}

type listingView struct {
	pageView
	Path      string
	Search    string
	Groups    []linkGroup
	Ranges    []rangeView
	Cards     []Home
	Matched   int
	ResetHref string
}

type linkGroup struct {
	Label string
	Links []filterLink
}

type filterLink struct {
	Text   string
	Href   string
	Active bool
}

// rangeView is a pair of dropdowns. Picking from the first stages the
// value; picking from the second applies both.
type rangeView struct {
	Label string
	First rangeSide
	Last  rangeSide
}

type rangeSide struct {
	Button  string
	Param   string
	Options []rangeOption
}

type rangeOption struct {
	Text  string
	Value int
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"server":    "storefront",
		"homes":     len(s.homes),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := pageView{Menus: s.nav.Menus}
	switch heading, ok := s.headings[r.URL.Path]; {
	case r.URL.Path == HomePath:
		view.Title = "Home"
		view.Heading = "Find Your Next Home"
		s.render(w, http.StatusOK, "home.html", view)
	case ok:
		view.Title = heading
		view.Heading = heading
		s.render(w, http.StatusOK, "content.html", view)
	default:
		view.Title = "Not Found"
		view.Heading = "Page not found"
		s.render(w, http.StatusNotFound, "content.html", view)
	}
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := ParseQuery(values)
	matched := Filter(s.homes, query)

	heading := s.headings[AllModelsPath]
	if heading == "" {
		heading = "All Models"
	}
	view := listingView{
		pageView:  pageView{Title: heading, Heading: heading, Menus: s.nav.Menus},
		Path:      r.URL.Path,
		Search:    query.Search,
		Matched:   len(matched),
		ResetHref: r.URL.Path,
		Cards:     matched[:min(len(matched), PageSize)],
	}

	manufacturerOptions := make([][2]string, len(manufacturers))
	for i, m := range manufacturers {
		manufacturerOptions[i] = [2]string{m.Name, m.Slug}
	}
	view.Groups = []linkGroup{
		filterGroup(r.URL.Path, values, "Sections", ParamSections, [][2]string{{"Single", "1"}, {"Multi", "2"}}),
		filterGroup(r.URL.Path, values, "Manufacturer", ParamManufacturer, manufacturerOptions),
		filterGroup(r.URL.Path, values, "Bedrooms", ParamBedrooms, counts(5)),
		filterGroup(r.URL.Path, values, "Baths", ParamBathrooms, counts(3)),
	}
	view.Ranges = []rangeView{
		{
			Label: "Monthly Payment",
			First: rangeSide{Button: current(query.MinPayment, 500, "$%d"), Param: ParamMinPayment, Options: steps(500, 2700, 100, "$%d /m")},
			Last:  rangeSide{Button: current(query.MaxPayment, 2700, "$%d"), Param: ParamMaxPayment, Options: steps(500, 2700, 100, "$%d /m")},
		},
		{
			Label: "Square Footage",
			First: rangeSide{Button: current(query.MinSqft, 400, "%d /ft2"), Param: ParamMinSqft, Options: steps(400, 2500, 100, "%d /ft2")},
			Last:  rangeSide{Button: current(query.MaxSqft, 2500, "%d /ft2"), Param: ParamMaxSqft, Options: steps(400, 2500, 100, "%d /ft2")},
		},
		{
			Label: "Dimensions",
			First: rangeSide{Button: current(query.MaxWidth, 32, "%d ft"), Param: ParamMaxWidth, Options: steps(12, 32, 2, "%d ft")},
			Last:  rangeSide{Button: current(query.MaxLength, 80, "%d ft"), Param: ParamMaxLength, Options: steps(40, 80, 2, "%d ft")},
		},
	}

	s.render(w, http.StatusOK, "listing.html", view)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, view any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, view); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// filterGroup builds an "Any" link plus one link per option, each keeping
// the rest of the current query
func filterGroup(path string, values url.Values, label, param string, options [][2]string) linkGroup {
	selected := values.Get(param)
	group := linkGroup{Label: label}
	group.Links = append(group.Links, filterLink{
		Text:   "Any",
		Href:   withParam(path, values, param, ""),
		Active: selected == "",
	})
	for _, option := range options {
		group.Links = append(group.Links, filterLink{
			Text:   option[0],
			Href:   withParam(path, values, param, option[1]),
			Active: selected == option[1],
		})
	}
	return group
}

func withParam(path string, values url.Values, param, value string) string {
	next := url.Values{}
	for k, v := range values {
		next[k] = append([]string(nil), v...)
	}
	if value == "" {
		next.Del(param)
	} else {
		next.Set(param, value)
	}
	if len(next) == 0 {
		return path
	}
	return path + "?" + next.Encode()
}

func counts(n int) [][2]string {
	out := make([][2]string, n)
	for i := range out {
		v := strconv.Itoa(i + 1)
		out[i] = [2]string{v, v}
	}
	return out
}

func steps(from, to, step int, format string) []rangeOption {
	var out []rangeOption
	for v := from; v <= to; v += step {
		out = append(out, rangeOption{Text: fmt.Sprintf(format, v), Value: v})
	}
	return out
}

func current(value, fallback int, format string) string {
	if value == 0 {
		value = fallback
	}
	return fmt.Sprintf(format, value)
}

// Package fixtures loads the immutable test data the scenarios iterate over:
// bedroom/bathroom combinations and the header navigation map.
package fixtures

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/go-playground/validator/v10"
)

//go:embed data/*.json
var defaultData embed.FS

// Fixture file base names; each may be .json, .yaml or .yml
const (
	ValidFiltersName   = "valid-filters"
	InvalidFiltersName = "invalid-filters"
	NavigationName     = "navigation-data"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Count is a filter value as it appears in the storefront's query string
type Count struct {
	Value string `json:"value" yaml:"value" validate:"required,numeric"`
}

// BedBath is one bedroom/bathroom filter combination
type BedBath struct {
	Bedroom  Count `json:"bedroom" yaml:"bedroom"`
	Bathroom Count `json:"bathroom" yaml:"bathroom"`
}

func (c BedBath) String() string {
	return fmt.Sprintf("%s bedroom(s), %s bathroom(s)", c.Bedroom.Value, c.Bathroom.Value)
}

// Link is a navigation target and the heading its page must show
type Link struct {
	Href    string `validate:"required,startswith=/"`
	Heading string `validate:"required"`
}

// Menu is a header entry. A dropdown menu opens on hover and lists its
// links; a plain menu is a group of always-visible header links.
type Menu struct {
	Name     string `validate:"required"`
	Dropdown bool
	Links    []Link `validate:"required,min=1,dive"`
}

// Hrefs returns the menu's link targets in order
func (m Menu) Hrefs() []string {
	hrefs := make([]string, len(m.Links))
	for i, link := range m.Links {
		hrefs[i] = link.Href
	}
	return hrefs
}

// Navigation is the header map in source order
type Navigation struct {
	Menus []Menu `validate:"required,min=1,dive"`
}

// Set is everything the suite reads at start
type Set struct {
	Valid      []BedBath  `validate:"dive"`
	Invalid    []BedBath  `validate:"dive"`
	Navigation Navigation `validate:"required"`
}

// Default returns the built-in fixture set
func Default() (*Set, error) {
	sub, err := fs.Sub(defaultData, "data")
	if err != nil {
		return nil, fmt.Errorf("failed to open built-in fixtures: %w", err)
	}
	return LoadFS(sub)
}

// Load reads fixtures from dir, or the built-in set when dir is empty
func Load(dir string) (*Set, error) {
	if dir == "" {
		return Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures path %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads and validates the three fixture files from fsys
func LoadFS(fsys fs.FS) (*Set, error) {
	set := &Set{}

	name, data, err := readFixture(fsys, ValidFiltersName)
	if err != nil {
		return nil, err
	}
	if set.Valid, err = decodeCombinations(name, data); err != nil {
		return nil, err
	}

	name, data, err = readFixture(fsys, InvalidFiltersName)
	if err != nil {
		return nil, err
	}
	if set.Invalid, err = decodeCombinations(name, data); err != nil {
		return nil, err
	}

	name, data, err = readFixture(fsys, NavigationName)
	if err != nil {
		return nil, err
	}
	if set.Navigation, err = decodeNavigation(name, data); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(set); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return set, nil
}

// readFixture returns the first of base.json, base.yaml, base.yml found
func readFixture(fsys fs.FS, base string) (string, []byte, error) {
	for _, ext := range extensions {
		name := base + ext
		data, err := fs.ReadFile(fsys, name)
		if err == nil {
			return name, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("failed to read fixture %s: %w", name, err)
		}
	}
	return "", nil, fmt.Errorf("fixture %s not found (tried %v)", base, extensions)
}

func isYAML(name string) bool {
	ext := path.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

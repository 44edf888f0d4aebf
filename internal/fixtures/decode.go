package fixtures

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

func decodeCombinations(name string, data []byte) ([]BedBath, error) {
	var combos []BedBath
	var err error
	if isYAML(name) {
		err = yaml.Unmarshal(data, &combos)
	} else {
		err = json.Unmarshal(data, &combos)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return combos, nil
}

// decodeNavigation keeps menus and links in file order. Each top-level key
// is a menu; a menu object holding "sublinks" is a dropdown, any other
// object maps href to heading directly.
func decodeNavigation(name string, data []byte) (Navigation, error) {
	var nav Navigation
	var err error
	if isYAML(name) {
		nav, err = navigationFromYAML(data)
	} else {
		nav, err = navigationFromJSON(data)
	}
	if err != nil {
		return Navigation{}, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nav, nil
}

func navigationFromJSON(data []byte) (Navigation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var nav Navigation

	if err := expectDelim(dec, '{'); err != nil {
		return nav, err
	}
	for dec.More() {
		menuName, err := stringToken(dec)
		if err != nil {
			return nav, err
		}
		menu := Menu{Name: menuName}
		if err := expectDelim(dec, '{'); err != nil {
			return nav, fmt.Errorf("menu %q: %w", menuName, err)
		}
		for dec.More() {
			key, err := stringToken(dec)
			if err != nil {
				return nav, err
			}
			if key == "sublinks" {
				menu.Dropdown = true
				links, err := linksFromJSON(dec)
				if err != nil {
					return nav, fmt.Errorf("menu %q sublinks: %w", menuName, err)
				}
				menu.Links = append(menu.Links, links...)
				continue
			}
			var heading string
			if err := dec.Decode(&heading); err != nil {
				return nav, fmt.Errorf("menu %q link %q: %w", menuName, key, err)
			}
			menu.Links = append(menu.Links, Link{Href: key, Heading: heading})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nav, err
		}
		nav.Menus = append(nav.Menus, menu)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nav, err
	}
	return nav, nil
}

func linksFromJSON(dec *json.Decoder) ([]Link, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var links []Link
	for dec.More() {
		href, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var heading string
		if err := dec.Decode(&heading); err != nil {
			return nil, fmt.Errorf("link %q: %w", href, err)
		}
		links = append(links, Link{Href: href, Heading: heading})
	}
	return links, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}

func navigationFromYAML(data []byte) (Navigation, error) {
	var nav Navigation
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nav, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nav, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nav, fmt.Errorf("line %d: expected a mapping of menus", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		menuName, body := root.Content[i].Value, root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nav, fmt.Errorf("line %d: menu %q must be a mapping", body.Line, menuName)
		}
		menu := Menu{Name: menuName}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key, value := body.Content[j], body.Content[j+1]
			if key.Value == "sublinks" {
				if value.Kind != yaml.MappingNode {
					return nav, fmt.Errorf("line %d: sublinks of %q must be a mapping", value.Line, menuName)
				}
				menu.Dropdown = true
				for k := 0; k+1 < len(value.Content); k += 2 {
					menu.Links = append(menu.Links, Link{Href: value.Content[k].Value, Heading: value.Content[k+1].Value})
				}
				continue
			}
			if value.Kind != yaml.ScalarNode {
				return nav, fmt.Errorf("line %d: heading for %q must be a string", value.Line, key.Value)
			}
			menu.Links = append(menu.Links, Link{Href: key.Value, Heading: value.Value})
		}
		nav.Menus = append(nav.Menus, menu)
	}
	return nav, nil
}

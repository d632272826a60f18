package catalog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrMalformedCatalog = errors.New("malformed catalog")

// Load reads a card document from disk. See Parse for the accepted shape.
func Load(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cards, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cards, nil
}

// Parse accepts either an object keyed by card id or an array of card
// objects. Card fields follow the tagger output: id_, name_, craft_, pp_,
// rotation_, type_, trait_, tags_.
func Parse(data []byte) ([]Card, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedCatalog)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() && !root.IsArray() {
		return nil, fmt.Errorf("%w: expected object or array at top level", ErrMalformedCatalog)
	}

	var cards []Card
	var parseErr error
	root.ForEach(func(key, value gjson.Result) bool {
		card, err := parseCard(key, value)
		if err != nil {
			parseErr = err
			return false
		}
		cards = append(cards, card)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return cards, nil
}

func parseCard(key, value gjson.Result) (Card, error) {
	if !value.IsObject() {
		return Card{}, fmt.Errorf("%w: card %s is not an object", ErrMalformedCatalog, key.String())
	}

	id, err := parseID(key, value.Get("id_"))
	if err != nil {
		return Card{}, err
	}
	pp := value.Get("pp_")
	if !pp.Exists() || pp.Type != gjson.Number {
		return Card{}, fmt.Errorf("%w: card %d has no numeric pp_", ErrMalformedCatalog, id)
	}
	if pp.Int() < 0 {
		return Card{}, fmt.Errorf("%w: card %d has negative pp_", ErrMalformedCatalog, id)
	}
	craft := strings.TrimSpace(value.Get("craft_").String())
	if craft == "" {
		return Card{}, fmt.Errorf("%w: card %d has no craft_", ErrMalformedCatalog, id)
	}

	var tags []string
	value.Get("tags_").ForEach(func(_, tag gjson.Result) bool {
		if t := strings.TrimSpace(tag.String()); t != "" {
			tags = append(tags, t)
		}
		return true
	})

	return Card{
		ID:       id,
		Name:     value.Get("name_").String(),
		Craft:    craft,
		Cost:     int(pp.Int()),
		Rotation: value.Get("rotation_").Bool(),
		Type:     value.Get("type_").String(),
		Trait:    value.Get("trait_").String(),
		Tags:     tags,
	}, nil
}

func parseID(key, field gjson.Result) (int, error) {
	if field.Exists() {
		switch field.Type {
		case gjson.Number:
			return int(field.Int()), nil
		case gjson.String:
			id, err := strconv.Atoi(strings.TrimSpace(field.Str))
			if err != nil {
				return 0, fmt.Errorf("%w: id_ %q is not an integer", ErrMalformedCatalog, field.Str)
			}
			return id, nil
		}
	}
	if key.Type == gjson.String {
		if id, err := strconv.Atoi(strings.TrimSpace(key.Str)); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: card without id_", ErrMalformedCatalog)
}

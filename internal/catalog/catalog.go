// Package catalog holds the ordered card pool the optimizer indexes into.
package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
)

const NeutralCraft = "Neutral"

// Crafts in portal order; the position is the craft's portal number.
var Crafts = []string{
	NeutralCraft,
	"Forestcraft",
	"Swordcraft",
	"Runecraft",
	"Dragoncraft",
	"Shadowcraft",
	"Bloodcraft",
	"Havencraft",
	"Portalcraft",
}

// CraftNumber returns the portal number of a craft, or -1 when unknown.
func CraftNumber(craft string) int {
	return slices.Index(Crafts, craft)
}

type Card struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Craft    string   `json:"craft"`
	Cost     int      `json:"cost"`
	Rotation bool     `json:"rotation"`
	Type     string   `json:"type"`
	Trait    string   `json:"trait"`
	Tags     []string `json:"tags"`
}

// HasAnyTag reports whether the card carries at least one of the tags.
func (c Card) HasAnyTag(tags map[string]struct{}) bool {
	for _, tag := range c.Tags {
		if _, ok := tags[tag]; ok {
			return true
		}
	}
	return false
}

// Catalog is an ordered, read-only card pool. Index i is stable for the
// lifetime of the catalog.
type Catalog struct {
	cards []Card
}

func New(cards []Card) *Catalog {
	return &Catalog{cards: slices.Clone(cards)}
}

func (c *Catalog) Size() int {
	return len(c.cards)
}

func (c *Catalog) Card(index int) Card {
	return c.cards[index]
}

func (c *Catalog) CostAt(index int) int {
	return c.cards[index].Cost
}

func (c *Catalog) TagsAt(index int) []string {
	return c.cards[index].Tags
}

func (c *Catalog) Cards() []Card {
	return slices.Clone(c.cards)
}

// IndexOf returns the position of the card id, or -1.
func (c *Catalog) IndexOf(id int) int {
	return slices.IndexFunc(c.cards, func(card Card) bool { return card.ID == id })
}

// AvailableTags lists the tags carried by non-Neutral cards.
func (c *Catalog) AvailableTags() []string {
	seen := make(map[string]struct{})
	for _, card := range c.cards {
		if card.Craft == NeutralCraft {
			continue
		}
		for _, tag := range card.Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

type Format string

const (
	FormatRotation  Format = "rotation"
	FormatUnlimited Format = "unlimited"
)

// Number is the portal game mode number of the format.
func (f Format) Number() int {
	if f == FormatUnlimited {
		return 1
	}
	return 0
}

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatRotation, FormatUnlimited:
		return Format(value), nil
	case "":
		return FormatUnlimited, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", value)
	}
}

// Filter keeps the cards a given craft may play in a given format.
type Filter struct {
	Craft  string
	Format Format
}

func (f Filter) Apply(cards []Card) ([]Card, error) {
	if CraftNumber(f.Craft) <= 0 {
		return nil, fmt.Errorf("unsupported craft: %q", f.Craft)
	}
	out := make([]Card, 0, len(cards))
	for _, card := range cards {
		if card.Craft != f.Craft && card.Craft != NeutralCraft {
			continue
		}
		if f.Format == FormatRotation && !card.Rotation {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

// DeepSort orders cards so that index adjacency tracks gameplay similarity:
// cost first, then tags, type, craft, trait and id.
func DeepSort(cards []Card) {
	slices.SortStableFunc(cards, func(a, b Card) int {
		return cmp.Or(
			cmp.Compare(a.Cost, b.Cost),
			slices.Compare(a.Tags, b.Tags),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Craft, b.Craft),
			cmp.Compare(a.Trait, b.Trait),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// Build filters and deep-sorts raw cards into a catalog.
func Build(cards []Card, filter Filter) (*Catalog, error) {
	kept, err := filter.Apply(cards)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no cards left for craft %s in %s format", filter.Craft, filter.Format)
	}
	DeepSort(kept)
	return &Catalog{cards: kept}, nil
}

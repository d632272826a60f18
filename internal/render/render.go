// Package render formats decks and run progress for terminal output.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/efinauri/shadowbuilder/internal/catalog"
	"github.com/efinauri/shadowbuilder/internal/model"
)

const (
	portalBase     = "https://shadowverse-portal.com/deck/"
	portalAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"
)

// DeckList prints one line per distinct card in index order.
func DeckList(record model.DeckRecord) string {
	var b strings.Builder
	for _, card := range record.Cards {
		fmt.Fprintf(&b, "[%-3d]  %dx %s\n", card.Index, card.Count, card.Name)
	}
	return b.String()
}

// Curve buckets card copies by cost. Costs below 1 land in the first bucket
// and costs above the bucket count in the last one.
func Curve(cards []model.DeckCard, buckets int) []int {
	if buckets <= 0 {
		return nil
	}
	curve := make([]int, buckets)
	for _, card := range cards {
		bucket := min(max(card.Cost, 1), buckets) - 1
		curve[bucket] += card.Count
	}
	return curve
}

// Histogram draws counts as vertical bars. The first bucket is labelled 0/1
// and the last one is open ended.
func Histogram(counts []int, symbol string, gap int) string {
	if symbol == "" {
		symbol = "#"
	}
	if gap < 0 {
		gap = 0
	}
	labels := make([]string, len(counts))
	width := len(symbol)
	for i := range counts {
		switch i {
		case 0:
			labels[i] = "0/1"
		default:
			labels[i] = strconv.Itoa(i + 1)
		}
		if i == len(counts)-1 {
			labels[i] += "+"
		}
		width = max(width, len(labels[i]))
	}
	width += gap

	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}

	var b strings.Builder
	for height := peak; height >= 1; height-- {
		var row strings.Builder
		fmt.Fprintf(&row, "%2d ", height)
		for _, c := range counts {
			cell := strings.Repeat(" ", len(symbol))
			if c >= height {
				cell = symbol
			}
			row.WriteString(cell)
			row.WriteString(strings.Repeat(" ", width-len(symbol)))
		}
		b.WriteString(strings.TrimRight(row.String(), " "))
		b.WriteByte('\n')
	}

	var axis strings.Builder
	axis.WriteString("   ")
	for _, label := range labels {
		axis.WriteString(label)
		axis.WriteString(strings.Repeat(" ", width-len(label)))
	}
	b.WriteString(strings.TrimRight(axis.String(), " "))
	b.WriteByte('\n')
	return b.String()
}

// PortalLink builds the shareable deck url. Every copy of a card repeats its
// encoded id.
func PortalLink(format catalog.Format, craft string, cards []model.DeckCard) (string, error) {
	craftNumber := catalog.CraftNumber(craft)
	if craftNumber <= 0 {
		return "", fmt.Errorf("unsupported craft: %q", craft)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d.%d", portalBase, format.Number(), craftNumber)
	for _, card := range cards {
		if card.ID < 0 {
			return "", fmt.Errorf("card %d has a negative id", card.Index)
		}
		code := EncodeCardID(card.ID)
		for range card.Count {
			b.WriteByte('.')
			b.WriteString(code)
		}
	}
	b.WriteString("?lang=en")
	return b.String(), nil
}

// EncodeCardID writes id in base 64 with the portal alphabet.
func EncodeCardID(id int) string {
	if id == 0 {
		return portalAlphabet[:1]
	}
	var digits []byte
	for id > 0 {
		digits = append(digits, portalAlphabet[id%64])
		id /= 64
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// GenerationLine summarizes one generation for progress output.
func GenerationLine(d model.GenerationDiagnostics) string {
	return fmt.Sprintf("generation %s: min=%.3f avg=%.3f max=%.3f best=%.3f threshold=%.3f survivors=%s distinct=%s",
		humanize.Comma(int64(d.Generation)),
		d.MinFitness, d.MeanFitness, d.BestFitness, d.BestEverFitness, d.CullThreshold,
		humanize.Comma(int64(d.Survivors)),
		humanize.Comma(int64(d.DistinctDecks)),
	)
}

// DeckSummary is the header printed above a deck listing.
func DeckSummary(record model.DeckRecord) string {
	copies, distinct := 0, len(record.Cards)
	for _, card := range record.Cards {
		copies += card.Count
	}
	return fmt.Sprintf("%s %s deck: %s cards, %s distinct, fitness %.4f (curve %.3f, tags %.3f, consistency %.3f)",
		record.Craft, record.Format,
		humanize.Comma(int64(copies)), humanize.Comma(int64(distinct)),
		record.Fitness, record.Curve, record.Tags, record.Consistency,
	)
}

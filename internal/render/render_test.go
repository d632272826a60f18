package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efinauri/shadowbuilder/internal/catalog"
	"github.com/efinauri/shadowbuilder/internal/model"
)

func TestHistogram(t *testing.T) {
	got := Histogram([]int{2, 0, 1}, "#", 1)
	want := " 2 #\n" +
		" 1 #       #\n" +
		"   0/1 2   3+\n"
	assert.Equal(t, want, got)
}

func TestHistogramEmptyCurveOnlyDrawsAxis(t *testing.T) {
	got := Histogram([]int{0, 0}, "", -1)
	assert.Equal(t, "   0/12+\n", got)
}

func TestHistogramRowsMatchPeak(t *testing.T) {
	got := Histogram([]int{4, 14, 6, 5, 4, 3, 2, 2}, "#", 1)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 15)
	assert.True(t, strings.HasPrefix(lines[0], "14 "))
	assert.True(t, strings.HasSuffix(lines[14], "8+"))
}

func TestCurveClampsCosts(t *testing.T) {
	cards := []model.DeckCard{{Cost: 0, Count: 2}, {Cost: 1, Count: 1}, {Cost: 10, Count: 3}}
	assert.Equal(t, []int{3, 0, 3}, Curve(cards, 3))
	assert.Nil(t, Curve(cards, 0))
}

func TestEncodeCardID(t *testing.T) {
	assert.Equal(t, "0", EncodeCardID(0))
	assert.Equal(t, "Z", EncodeCardID(35))
	assert.Equal(t, "1a", EncodeCardID(100))
	assert.Equal(t, "10", EncodeCardID(64))
	assert.Equal(t, "__", EncodeCardID(64*64-1))
}

func TestPortalLinkRepeatsCopies(t *testing.T) {
	cards := []model.DeckCard{{Index: 0, ID: 100, Count: 2}, {Index: 3, ID: 64, Count: 1}}
	link, err := PortalLink(catalog.FormatRotation, "Forestcraft", cards)
	require.NoError(t, err)
	assert.Equal(t, "https://shadowverse-portal.com/deck/0.1.1a.1a.10?lang=en", link)

	link, err = PortalLink(catalog.FormatUnlimited, "Portalcraft", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://shadowverse-portal.com/deck/1.8?lang=en", link)
}

func TestPortalLinkRejectsNeutral(t *testing.T) {
	_, err := PortalLink(catalog.FormatRotation, catalog.NeutralCraft, nil)
	assert.Error(t, err)
}

func TestDeckListAndSummary(t *testing.T) {
	record := model.DeckRecord{
		Craft:   "Havencraft",
		Format:  "unlimited",
		Fitness: 0.5,
		Cards: []model.DeckCard{
			{Index: 2, Name: "Snake Priestess", Count: 3},
			{Index: 17, Name: "Themis's Decree", Count: 1},
		},
	}
	assert.Equal(t, "[2  ]  3x Snake Priestess\n[17 ]  1x Themis's Decree\n", DeckList(record))
	summary := DeckSummary(record)
	assert.Contains(t, summary, "4 cards, 2 distinct")
	assert.Contains(t, summary, "fitness 0.5000")
}

func TestGenerationLineUsesGrouping(t *testing.T) {
	line := GenerationLine(model.GenerationDiagnostics{Generation: 3, Survivors: 1500, DistinctDecks: 2048, BestFitness: 0.25})
	assert.Contains(t, line, "generation 3:")
	assert.Contains(t, line, "survivors=1,500")
	assert.Contains(t, line, "distinct=2,048")
	assert.Contains(t, line, "max=0.250")
}

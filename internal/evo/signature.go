package evo

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/efinauri/shadowbuilder/internal/deck"
)

// Fingerprint is a short stable hash of a deck's (index, count) entries.
func Fingerprint(d *deck.Deck) string {
	entries := d.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, strconv.Itoa(e.Index)+"x"+strconv.Itoa(e.Count))
	}
	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:8])
}

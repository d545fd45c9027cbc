package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Header folds a column label for lookup: accents removed, whitespace
// collapsed, lowercased ("Número  da Ação" -> "numero da acao").
func Header(label string) string {
	// transform.Chain is stateful, build one per call.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, label)
	if err != nil {
		folded = label
	}
	folded = strings.TrimPrefix(folded, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

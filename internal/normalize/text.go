// Package normalize holds the text and code normalizations used to compare
// and display expense records.
package normalize

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Text returns the comparison form of v: coerced to a string (nil becomes ""),
// trimmed, with every run of whitespace collapsed to a single space, and
// lowercased. It is total and idempotent. Never use it for display.
func Text(v any) string {
	s := toString(v)
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	// Casers carry state and are not safe to share across goroutines.
	return cases.Lower(language.Und).String(s)
}

// Equal reports whether a and b have the same comparison form.
func Equal(a, b any) bool {
	return Text(a) == Text(b)
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

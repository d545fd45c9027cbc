package normalize

import "strings"

// minNatureDigits is the shortest code that can be grouped.
const minNatureDigits = 6

// NatureCode reduces an expense-nature code to its dotted 1-1-2-2 grouping
// ("339039" -> "3.3.90.39"). Non-digits are stripped first and digits past
// the sixth are dropped. Codes with fewer than six digits are returned
// unchanged.
func NatureCode(code string) string {
	var digits strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) < minNatureDigits {
		return code
	}

	return d[0:1] + "." + d[1:2] + "." + d[2:4] + "." + d[4:6]
}

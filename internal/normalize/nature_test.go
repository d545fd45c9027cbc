package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNatureCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"six digits", "339039", "3.3.90.39"},
		{"already dotted", "3.3.90.39", "3.3.90.39"},
		{"too short", "12", "12"},
		{"extra digits dropped", "33903901", "3.3.90.39"},
		{"dashes stripped", "3-3-90-39-00", "3.3.90.39"},
		{"no digits", "n/a", "n/a"},
		{"empty", "", ""},
		{"five digits unchanged", "3.3.9.0.3", "3.3.9.0.3"},
		{"surrounding spaces", " 449052 ", "4.4.90.52"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NatureCode(tt.in))
		})
	}
}

package model

import (
	"sort"
	"strings"
)

// ExpenseRecord is one row of a fiscal year's expense table.
// Every field is kept as text exactly as read from the source file.
type ExpenseRecord struct {
	Entity             string `json:"entity" yaml:"entity"`
	ExpenseNumber      string `json:"expense_number" yaml:"expense_number"`
	FunctionCode       string `json:"function_code" yaml:"function_code"`
	SubfunctionCode    string `json:"subfunction_code" yaml:"subfunction_code"`
	ProgramCode        string `json:"program_code" yaml:"program_code"`
	ActionCode         string `json:"action_code" yaml:"action_code"`
	ActionDescription  string `json:"action_description" yaml:"action_description"`
	ProgramDescription string `json:"program_description" yaml:"program_description"`
	NatureCode         string `json:"nature_code" yaml:"nature_code"`
	NatureDescription  string `json:"nature_description" yaml:"nature_description"`
	FiscalYear         string `json:"fiscal_year" yaml:"fiscal_year"` // attached at load time
}

// ClassificationPath renders the budget classification as
// "função . subfunção . programa . ação".
func (r ExpenseRecord) ClassificationPath() string {
	return strings.Join([]string{r.FunctionCode, r.SubfunctionCode, r.ProgramCode, r.ActionCode}, " . ")
}

// Table holds one fiscal year's rows in source order. Rows are neither
// deduplicated nor validated.
type Table struct {
	Year    string          `json:"year"`
	Source  string          `json:"source"`
	Records []ExpenseRecord `json:"-"`

	// Duplicates counts (entity, expense number) pairs seen more than once.
	Duplicates int `json:"duplicates"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// YearDataset maps a 4-digit fiscal year to its table. It is read-only once built.
type YearDataset map[string]*Table

// Years returns the fiscal years in ascending order.
func (d YearDataset) Years() []string {
	years := make([]string, 0, len(d))
	for y := range d {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// Table returns the table for year, if loaded.
func (d YearDataset) Table(year string) (*Table, bool) {
	t, ok := d[year]
	return t, ok && t != nil
}

// Entities returns the sorted, unique, trimmed entity names found in the
// given years, or in every year when none are given.
func (d YearDataset) Entities(years ...string) []string {
	if len(years) == 0 {
		years = d.Years()
	}

	seen := make(map[string]struct{})
	for _, y := range years {
		t, ok := d.Table(y)
		if !ok {
			continue
		}
		for _, r := range t.Records {
			name := strings.TrimSpace(r.Entity)
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

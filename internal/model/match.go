package model

import "time"

// Outcome is the terminal state of a cross-year lookup.
type Outcome string

const (
	OutcomeSourceNotFound Outcome = "source_not_found"
	OutcomeTargetNotFound Outcome = "target_not_found"
	OutcomeMatched        Outcome = "matched"
)

// MatchResult pairs a prior-year record with its counterpart in the
// following year. It lives only for the duration of one query.
type MatchResult struct {
	Entity        string         `json:"entity" yaml:"entity"`
	SourceYear    string         `json:"source_year" yaml:"source_year"`
	TargetYear    string         `json:"target_year" yaml:"target_year"`
	ExpenseNumber string         `json:"expense_number" yaml:"expense_number"`
	Source        *ExpenseRecord `json:"source,omitempty" yaml:"source,omitempty"`
	Target        *ExpenseRecord `json:"target,omitempty" yaml:"target,omitempty"`
	Outcome       Outcome        `json:"outcome" yaml:"outcome"`
}

// Matched reports whether both records were found.
func (m *MatchResult) Matched() bool {
	return m != nil && m.Outcome == OutcomeMatched && m.Source != nil && m.Target != nil
}

// Declaration records an emitted rectification document.
type Declaration struct {
	ID           string    `json:"id"`
	Entity       string    `json:"entity"`
	SourceYear   string    `json:"source_year"`
	TargetYear   string    `json:"target_year"`
	SourceNumber string    `json:"source_number"`
	TargetNumber string    `json:"target_number"`
	NatureCode   string    `json:"nature_code"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDeclaration builds a Declaration from a matched result. The ID and
// timestamp are assigned by the store.
func NewDeclaration(m *MatchResult, filename string) Declaration {
	d := Declaration{
		Entity:       m.Entity,
		SourceYear:   m.SourceYear,
		TargetYear:   m.TargetYear,
		SourceNumber: m.ExpenseNumber,
		Filename:     filename,
	}
	if m.Source != nil {
		d.SourceNumber = m.Source.ExpenseNumber
		d.NatureCode = m.Source.NatureCode
	}
	if m.Target != nil {
		d.TargetNumber = m.Target.ExpenseNumber
	}
	return d
}

// Package match locates an expense record in a prior-year table and its
// counterpart in a following-year table.
package match

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
)

// DescriptionKey selects the descriptive field joined across years.
type DescriptionKey string

const (
	KeyAction  DescriptionKey = "action"
	KeyProgram DescriptionKey = "program"
)

// ParseDescriptionKey validates a configured key. Empty means KeyAction.
func ParseDescriptionKey(s string) (DescriptionKey, error) {
	switch DescriptionKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyAction:
		return KeyAction, nil
	case KeyProgram:
		return KeyProgram, nil
	default:
		return "", eris.Errorf("match: unknown description key %q", s)
	}
}

func (k DescriptionKey) value(r *model.ExpenseRecord) string {
	if k == KeyProgram {
		return r.ProgramDescription
	}
	return r.ActionDescription
}

// FindSource returns the first row of table belonging to entity whose
// expense number equals expenseNumber after normalization. The row's entity
// is trimmed and compared to entity as given, so callers pass a trimmed name.
func FindSource(table *model.Table, entity, expenseNumber string) (*model.ExpenseRecord, bool) {
	if table == nil {
		return nil, false
	}
	want := normalize.Text(expenseNumber)

	for i := range table.Records {
		r := &table.Records[i]
		if strings.TrimSpace(r.Entity) != entity {
			continue
		}
		if normalize.Text(r.ExpenseNumber) == want {
			return r, true
		}
	}
	return nil, false
}

// Matcher finds the counterpart of a source record in another year.
type Matcher struct {
	key DescriptionKey
}

// NewMatcher creates a Matcher joining on key.
func NewMatcher(key DescriptionKey) *Matcher {
	if key == "" {
		key = KeyAction
	}
	return &Matcher{key: key}
}

// Key returns the active description key.
func (m *Matcher) Key() DescriptionKey {
	return m.key
}

// FindTarget returns the first row of table belonging to entity whose
// description and nature description equal those of source after
// normalization. Expense numbers and years play no part.
func (m *Matcher) FindTarget(table *model.Table, entity string, source *model.ExpenseRecord) (*model.ExpenseRecord, bool) {
	if table == nil || source == nil {
		return nil, false
	}
	desc := normalize.Text(m.key.value(source))
	nature := normalize.Text(source.NatureDescription)

	for i := range table.Records {
		r := &table.Records[i]
		if strings.TrimSpace(r.Entity) != entity {
			continue
		}
		if normalize.Text(m.key.value(r)) == desc && normalize.Text(r.NatureDescription) == nature {
			return r, true
		}
	}
	return nil, false
}

// Match runs both lookups and reports the terminal outcome. entity is used
// as given, like in FindSource.
func (m *Matcher) Match(ds model.YearDataset, entity, sourceYear, targetYear, expenseNumber string) *model.MatchResult {
	res := &model.MatchResult{
		Entity:        entity,
		SourceYear:    sourceYear,
		TargetYear:    targetYear,
		ExpenseNumber: strings.TrimSpace(expenseNumber),
		Outcome:       model.OutcomeSourceNotFound,
	}

	srcTable, _ := ds.Table(sourceYear)
	src, ok := FindSource(srcTable, entity, expenseNumber)
	if !ok {
		return res
	}
	res.Source = src
	res.Outcome = model.OutcomeTargetNotFound

	dstTable, _ := ds.Table(targetYear)
	dst, ok := m.FindTarget(dstTable, entity, src)
	if !ok {
		return res
	}
	res.Target = dst
	res.Outcome = model.OutcomeMatched
	return res
}

package dataset

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
)

type field int

const (
	fieldExpenseNumber field = iota
	fieldFunctionCode
	fieldSubfunctionCode
	fieldProgramCode
	fieldActionCode
	fieldActionDescription
	fieldProgramDescription
	fieldNatureCode
	fieldNatureDescription
	numFields
)

var fieldNames = [numFields]string{
	"Número da despesa",
	"Número da função",
	"Número da subfunção",
	"Número do programa",
	"Número da ação",
	"Descrição da ação",
	"Descrição do programa",
	"Natureza de Despesa",
	"Descrição da natureza de despesa",
}

// Header labels seen in exports, folded with normalize.Header.
var headerAliases = map[string]field{
	"numero da despesa":                fieldExpenseNumber,
	"numero despesa":                   fieldExpenseNumber,
	"numero cadastral da despesa":      fieldExpenseNumber,
	"numero da funcao":                 fieldFunctionCode,
	"funcao":                           fieldFunctionCode,
	"numero da subfuncao":              fieldSubfunctionCode,
	"subfuncao":                        fieldSubfunctionCode,
	"numero do programa":               fieldProgramCode,
	"programa":                         fieldProgramCode,
	"numero da acao":                   fieldActionCode,
	"acao":                             fieldActionCode,
	"descricao da acao":                fieldActionDescription,
	"descricao do programa":            fieldProgramDescription,
	"natureza de despesa":              fieldNatureCode,
	"natureza da despesa":              fieldNatureCode,
	"descricao da natureza de despesa": fieldNatureDescription,
	"descricao da natureza da despesa": fieldNatureDescription,
}

var requiredFields = []field{
	fieldExpenseNumber,
	fieldActionDescription,
	fieldNatureCode,
	fieldNatureDescription,
}

// columnMap records the cell index of each field. The entity is always
// the first column.
type columnMap [numFields]int

func mapHeader(header []string) (columnMap, error) {
	var m columnMap
	for i := range m {
		m[i] = -1
	}

	// Index 0 is the entity, whatever its label.
	for i := 1; i < len(header); i++ {
		f, ok := headerAliases[normalize.Header(header[i])]
		if !ok || m[f] >= 0 {
			continue
		}
		m[f] = i
	}

	var missing []string
	for _, f := range requiredFields {
		if m[f] < 0 {
			missing = append(missing, fieldNames[f])
		}
	}
	if len(missing) > 0 {
		return m, eris.Errorf("dataset: missing columns: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

func (m columnMap) record(row []string, year string) model.ExpenseRecord {
	get := func(f field) string {
		i := m[f]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var entity string
	if len(row) > 0 {
		entity = row[0]
	}

	return model.ExpenseRecord{
		Entity:             entity,
		ExpenseNumber:      get(fieldExpenseNumber),
		FunctionCode:       get(fieldFunctionCode),
		SubfunctionCode:    get(fieldSubfunctionCode),
		ProgramCode:        get(fieldProgramCode),
		ActionCode:         get(fieldActionCode),
		ActionDescription:  get(fieldActionDescription),
		ProgramDescription: get(fieldProgramDescription),
		NatureCode:         get(fieldNatureCode),
		NatureDescription:  get(fieldNatureDescription),
		FiscalYear:         year,
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

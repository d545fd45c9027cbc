package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retifica-cli/internal/model"
)

const entity = "Prefeitura Municipal de Exemplo"

func rec(entity, number, action, program, natureCode, natureDesc string) model.ExpenseRecord {
	return model.ExpenseRecord{
		Entity:             entity,
		ExpenseNumber:      number,
		FunctionCode:       "04",
		SubfunctionCode:    "122",
		ProgramCode:        "0001",
		ActionCode:         "2001",
		ActionDescription:  action,
		ProgramDescription: program,
		NatureCode:         natureCode,
		NatureDescription:  natureDesc,
	}
}

func fixture() model.YearDataset {
	return model.YearDataset{
		"2023": {Year: "2023", Records: []model.ExpenseRecord{
			rec("Câmara Municipal", "12345", "Manutenção da Câmara", "Legislativo", "339039", "Outros Serviços de Terceiros - PJ"),
			rec(entity, "12345", "Manutenção da Secretaria de Administração", "Gestão Administrativa", "339039", "Outros Serviços de Terceiros - PJ"),
			rec(entity, "12346", "Manutenção da Secretaria de Administração", "Gestão Administrativa", "339030", "Material de Consumo"),
		}},
		"2024": {Year: "2024", Records: []model.ExpenseRecord{
			rec(entity, "67889", "Manutenção da Secretaria de Administração", "Gestão Administrativa", "339030", "Material de Consumo"),
			rec(entity, "67890", "  MANUTENÇÃO da Secretaria  de Administração ", "Gestão Administrativa", "339039", "outros serviços de terceiros - pj"),
			rec(entity, "67891", "Manutenção da Secretaria de Administração", "Gestão Administrativa", "339039", "Outros Serviços de Terceiros - PJ"),
		}},
	}
}

func TestFindSource(t *testing.T) {
	ds := fixture()
	tbl, _ := ds.Table("2023")

	r, ok := FindSource(tbl, entity, "12345")
	require.True(t, ok)
	assert.Equal(t, entity, r.Entity)
	assert.Equal(t, "339039", r.NatureCode)

	r, ok = FindSource(tbl, entity, " 12345 ")
	require.True(t, ok)
	assert.Equal(t, "12345", r.ExpenseNumber)
}

func TestFindSource_TrimsRowEntityOnly(t *testing.T) {
	tbl := &model.Table{Year: "2023", Records: []model.ExpenseRecord{
		rec("  "+entity+" ", "12345", "Ação", "", "339039", "Serviços"),
	}}

	r, ok := FindSource(tbl, entity, "12345")
	require.True(t, ok)
	assert.Equal(t, "12345", r.ExpenseNumber)

	_, ok = FindSource(tbl, "  "+entity+" ", "12345")
	assert.False(t, ok)

	_, ok = NewMatcher(KeyAction).FindTarget(tbl, " "+entity, r)
	assert.False(t, ok)
}

func TestFindSource_UnknownEntity(t *testing.T) {
	tbl, _ := fixture().Table("2023")
	_, ok := FindSource(tbl, "Entidade Inexistente", "12345")
	assert.False(t, ok)
}

func TestFindSource_EntityIsCaseSensitive(t *testing.T) {
	tbl, _ := fixture().Table("2023")
	_, ok := FindSource(tbl, "prefeitura municipal de exemplo", "12345")
	assert.False(t, ok)
}

func TestFindSource_NilTable(t *testing.T) {
	_, ok := FindSource(nil, entity, "12345")
	assert.False(t, ok)
}

func TestFindSource_FirstWins(t *testing.T) {
	tbl := &model.Table{Records: []model.ExpenseRecord{
		rec(entity, "1", "Primeira", "", "339039", "x"),
		rec(entity, "1", "Segunda", "", "339039", "x"),
	}}
	r, ok := FindSource(tbl, entity, "1")
	require.True(t, ok)
	assert.Equal(t, "Primeira", r.ActionDescription)
	assert.Same(t, &tbl.Records[0], r)
}

func TestFindTarget_NormalizedMatch(t *testing.T) {
	ds := fixture()
	srcTbl, _ := ds.Table("2023")
	dstTbl, _ := ds.Table("2024")

	src, ok := FindSource(srcTbl, entity, "12345")
	require.True(t, ok)

	dst, ok := NewMatcher(KeyAction).FindTarget(dstTbl, entity, src)
	require.True(t, ok)
	// 67890 differs from 67891 only in spacing and case; it comes first.
	assert.Equal(t, "67890", dst.ExpenseNumber)
}

func TestFindTarget_IgnoresNumberAndYear(t *testing.T) {
	src := rec(entity, "999", "Ação X", "", "339039", "Serviços")
	src.FiscalYear = "2010"
	tbl := &model.Table{Records: []model.ExpenseRecord{
		rec(entity, "1", "Ação Y", "", "339039", "Serviços"),
		rec(entity, "2", "ação x", "", "449052", "serviços"),
	}}

	dst, ok := NewMatcher("").FindTarget(tbl, entity, &src)
	require.True(t, ok)
	assert.Equal(t, "2", dst.ExpenseNumber)
}

func TestFindTarget_RequiresBothKeys(t *testing.T) {
	src := rec(entity, "1", "Ação X", "", "339039", "Serviços")
	tbl := &model.Table{Records: []model.ExpenseRecord{
		rec(entity, "1", "Ação X", "", "339039", "Material"),
		rec(entity, "2", "Ação Z", "", "339039", "Serviços"),
		rec("Outra Entidade", "3", "Ação X", "", "339039", "Serviços"),
	}}

	_, ok := NewMatcher(KeyAction).FindTarget(tbl, entity, &src)
	assert.False(t, ok)
}

func TestFindTarget_ProgramKey(t *testing.T) {
	src := rec(entity, "1", "Ação antiga", "Gestão Administrativa", "339039", "Serviços")
	tbl := &model.Table{Records: []model.ExpenseRecord{
		rec(entity, "10", "Ação nova", "gestão administrativa", "339039", "Serviços"),
	}}

	_, ok := NewMatcher(KeyAction).FindTarget(tbl, entity, &src)
	assert.False(t, ok)

	dst, ok := NewMatcher(KeyProgram).FindTarget(tbl, entity, &src)
	require.True(t, ok)
	assert.Equal(t, "10", dst.ExpenseNumber)
}

func TestFindTarget_NilInputs(t *testing.T) {
	m := NewMatcher(KeyAction)
	src := rec(entity, "1", "a", "", "339039", "b")

	_, ok := m.FindTarget(nil, entity, &src)
	assert.False(t, ok)
	_, ok = m.FindTarget(&model.Table{}, entity, nil)
	assert.False(t, ok)
}

func TestParseDescriptionKey(t *testing.T) {
	tests := []struct {
		in      string
		want    DescriptionKey
		wantErr bool
	}{
		{"", KeyAction, false},
		{"action", KeyAction, false},
		{" Program ", KeyProgram, false},
		{"nature", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDescriptionKey(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	ds := fixture()
	m := NewMatcher(KeyAction)

	res := m.Match(ds, entity, "2023", "2024", "12345")
	require.True(t, res.Matched())
	assert.Equal(t, model.OutcomeMatched, res.Outcome)
	assert.Equal(t, "12345", res.Source.ExpenseNumber)
	assert.Equal(t, "67890", res.Target.ExpenseNumber)
	assert.Equal(t, res.Source.NatureCode, res.Target.NatureCode)

	res = m.Match(ds, entity, "2023", "2024", "00000")
	assert.Equal(t, model.OutcomeSourceNotFound, res.Outcome)
	assert.Nil(t, res.Source)

	res = m.Match(ds, "Câmara Municipal", "2023", "2024", "12345")
	assert.Equal(t, model.OutcomeTargetNotFound, res.Outcome)
	require.NotNil(t, res.Source)
	assert.Nil(t, res.Target)

	res = m.Match(ds, entity, "2023", "2030", "12345")
	assert.Equal(t, model.OutcomeTargetNotFound, res.Outcome)
}

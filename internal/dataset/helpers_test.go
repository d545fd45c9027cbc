package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

var testHeader = []string{
	"Entidade",
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

func testRow(entity, number, action, nature, natureDesc string) []string {
	return []string{entity, number, "04", "122", "0001", "2001", action, "Gestão Administrativa", nature, natureDesc}
}

func writeCSV(t *testing.T, dir, name string, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(testHeader, ";"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r, ";"))
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeXLSX(t *testing.T, dir, name string, rows ...[]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Plan1")
	require.NoError(t, err)
	for _, data := range append([][]string{testHeader}, rows...) {
		row := sheet.AddRow()
		for _, c := range data {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

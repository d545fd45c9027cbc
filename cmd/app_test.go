package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retifica-cli/internal/config"
	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/reconcile"
	"github.com/sells-group/retifica-cli/internal/store"
)

const header = "Entidade;Número da despesa;Número da função;Número da subfunção;Número do programa;Número da ação;Descrição da ação;Descrição do programa;Natureza de Despesa;Descrição da natureza de despesa"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "dados")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	write := func(name string, rows ...string) {
		body := strings.Join(append([]string{header}, rows...), "\n") + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(body), 0o644))
	}
	write("despesas_2023.csv",
		"Prefeitura Municipal;12345;04;122;0001;2001;Manutenção da Secretaria;Gestão;339039;Outros Serviços de Terceiros - PJ",
	)
	write("despesas_2024.csv",
		"Prefeitura Municipal;67890;04;122;0001;2001;Manutenção da Secretaria;Gestão;339039;Outros Serviços de Terceiros - PJ",
	)

	return &config.Config{
		Datasets: config.DatasetsConfig{Dir: dataDir, Workers: 2},
		Match:    config.MatchConfig{DescriptionKey: "action"},
		Report:   config.ReportConfig{LogoPath: filepath.Join(dir, "missing.png")},
		Store:    config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "retifica.db")},
		Server:   config.ServerConfig{Port: 8080},
	}
}

func TestInitApp_EndToEnd(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initApp(ctx, c, "match", true)
	require.NoError(t, err)
	defer env.Close()

	doc, res, err := env.Service.Declaration(ctx, reconcile.Query{
		Entity: "Prefeitura Municipal", SourceYear: "2023", TargetYear: "2024", ExpenseNumber: "12345",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeMatched, res.Outcome)
	assert.Equal(t, "67890", res.Target.ExpenseNumber)
	assert.Equal(t, "Retificacao_Despesa_2024.pdf", doc.Filename)

	decls, err := env.Store.ListDeclarations(ctx, store.DeclarationFilter{})
	require.NoError(t, err)
	assert.Len(t, decls, 1)
}

func TestInitApp_WithoutStore(t *testing.T) {
	env, err := initApp(context.Background(), testConfig(t), "datasets", false)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Store)

	years, err := env.Service.Years(context.Background())
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, 1, years[0].Rows)
}

func TestInitApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Match.DescriptionKey = "nature"

	_, err := initApp(context.Background(), c, "match", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.description_key")
}

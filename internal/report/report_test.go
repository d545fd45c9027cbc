package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retifica-cli/internal/model"
)

func matchedResult() *model.MatchResult {
	return &model.MatchResult{
		Entity:        "Prefeitura Municipal",
		SourceYear:    "2023",
		TargetYear:    "2024",
		ExpenseNumber: "12345",
		Source: &model.ExpenseRecord{
			ExpenseNumber: "12345", FunctionCode: "04", SubfunctionCode: "122", ProgramCode: "0001", ActionCode: "2001",
			ActionDescription: "Manutenção da Secretaria", NatureCode: "339039", NatureDescription: "Outros Serviços",
		},
		Target: &model.ExpenseRecord{
			ExpenseNumber: "67890", FunctionCode: "04", SubfunctionCode: "122", ProgramCode: "0001", ActionCode: "2001",
			ActionDescription: "Manutenção da Secretaria", NatureCode: "3.3.90.39.00", NatureDescription: "Outros Serviços",
		},
		Outcome: model.OutcomeMatched,
	}
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
}

// render disables stream compression so the page text can be asserted on.
func render(t *testing.T, opts Options) []byte {
	t.Helper()
	opts.Now = fixedClock
	r := NewRenderer(opts)
	r.compress = false

	out, err := r.Render(matchedResult())
	require.NoError(t, err)
	return out
}

func TestRender_Content(t *testing.T) {
	out := render(t, Options{})

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	for _, want := range []string{
		"Data: 05/03/2024",
		"2023",
		"12345",
		"2024",
		"67890",
		"04 . 122 . 0001 . 2001",
		"3.3.90.39 - Outros Servi",
		"Diretoria de Planejamento Or",
		"Entidade: Prefeitura Municipal",
	} {
		assert.Contains(t, string(out), want)
	}
	assert.Equal(t, 2, bytes.Count(out, []byte("3.3.90.39 - ")), "both blocks show the reduced nature code")
}

func TestRender_CustomSignature(t *testing.T) {
	out := render(t, Options{Signature: "Secretaria de Fazenda"})
	assert.Contains(t, string(out), "Secretaria de Fazenda")
	assert.NotContains(t, string(out), "Diretoria de Planejamento")
}

func TestRender_MissingLogo(t *testing.T) {
	out := render(t, Options{LogoPath: filepath.Join(t.TempDir(), "missing.png")})
	assert.NotContains(t, string(out), "/Subtype /Image")
}

func TestRender_Logo(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	logo := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(logo)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out := render(t, Options{LogoPath: logo})
	assert.Contains(t, string(out), "/Subtype /Image")
}

func TestRender_UnreadableLogo(t *testing.T) {
	logo := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("not an image"), 0o644))

	out := render(t, Options{LogoPath: logo})
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_Compressed(t *testing.T) {
	out, err := NewRenderer(Options{Now: fixedClock}).Render(matchedResult())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_NotMatched(t *testing.T) {
	res := matchedResult()
	res.Target = nil
	res.Outcome = model.OutcomeTargetNotFound

	_, err := NewRenderer(Options{}).Render(res)
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Retificacao_Despesa_2024.pdf", Filename("2024"))
}

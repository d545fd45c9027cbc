// Package report renders the rectification declaration PDF for a matched
// pair of expense records.
package report

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
)

// MIME is the content type of a rendered declaration.
const MIME = "application/pdf"

// DefaultSignature closes every declaration unless overridden.
const DefaultSignature = "Diretoria de Planejamento Orçamentário"

const (
	titleLine1 = "RETIFICAÇÃO – RATIFICAÇÃO"
	titleLine2 = "NÚMERO CADASTRAL DE DESPESA"

	introText = "A presente manifestação tem por finalidade retificar ou ratificar " +
		"o número cadastral da despesa, conforme comparação entre os exercícios analisados."
	closingText = "Quanto à Fonte de Recurso, considerar a mesma da Declaração Orçamentária original."
)

// Page geometry in points.
const (
	marginX    = 50.0
	marginTop  = 30.0
	logoSize   = 80.0
	lineHeight = 16.0
	fontSize   = 11.0
	titleSize  = 14.0
)

// Options configures a Renderer.
type Options struct {
	// LogoPath is an image drawn centered above the title. A missing file
	// is not an error.
	LogoPath string
	// Signature is the centered closing line.
	Signature string
	// Now supplies the declaration date. Defaults to time.Now.
	Now func() time.Time
}

// Renderer produces declaration PDFs.
type Renderer struct {
	opts     Options
	compress bool
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.Signature == "" {
		opts.Signature = DefaultSignature
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{opts: opts, compress: true}
}

// Filename returns the download name for a declaration about targetYear.
func Filename(targetYear string) string {
	return fmt.Sprintf("Retificacao_Despesa_%s.pdf", targetYear)
}

// Render lays out the declaration for a matched result on one A4 page.
func (r *Renderer) Render(result *model.MatchResult) ([]byte, error) {
	if !result.Matched() {
		return nil, eris.New("report: result has no matched target")
	}

	pdf := r.newDocument()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*marginX

	pdf.AddPage()
	r.drawLogo(pdf, pageW)

	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.CellFormat(0, 22, tr(titleLine1), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 22, tr(titleLine2), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", fontSize)
	pdf.CellFormat(0, lineHeight, "Data: "+r.opts.Now().Format("02/01/2006"), "", 1, "R", false, 0, "")
	pdf.Ln(14)

	pdf.MultiCell(textW, lineHeight, tr(introText), "", "J", false)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "B", fontSize)
	pdf.MultiCell(textW, lineHeight, tr("Entidade: "+result.Entity), "", "L", false)
	pdf.Ln(14)

	r.drawBlock(pdf, tr, textW, "Origem", result.SourceYear, result.Source)
	pdf.Ln(14)
	r.drawBlock(pdf, tr, textW, "Atualização", result.TargetYear, result.Target)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", fontSize)
	pdf.MultiCell(textW, lineHeight, tr(closingText), "", "J", false)
	pdf.Ln(40)

	pdf.SetFont("Helvetica", "B", fontSize)
	pdf.CellFormat(0, lineHeight, tr(r.opts.Signature), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, eris.Wrap(err, "report: write pdf")
	}
	return buf.Bytes(), nil
}

func (r *Renderer) newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetAutoPageBreak(true, marginTop)
	pdf.SetTitle("Retificação - Ratificação", true)
	pdf.SetCreator("retifica-cli", false)
	pdf.SetCreationDate(r.opts.Now())
	return pdf
}

func (r *Renderer) drawLogo(pdf *fpdf.Fpdf, pageW float64) {
	if r.opts.LogoPath == "" {
		return
	}
	if _, err := os.Stat(r.opts.LogoPath); err != nil {
		zap.L().Debug("report: logo not found, rendering without it", zap.String("path", r.opts.LogoPath))
		return
	}

	pdf.ImageOptions(r.opts.LogoPath, (pageW-logoSize)/2, marginTop, logoSize, logoSize, false,
		fpdf.ImageOptions{ReadDpi: true}, 0, "")
	if pdf.Err() {
		zap.L().Warn("report: logo unreadable, rendering without it",
			zap.String("path", r.opts.LogoPath),
			zap.Error(pdf.Error()),
		)
		pdf.ClearError()
		return
	}
	pdf.SetY(marginTop + logoSize + 20)
}

func (r *Renderer) drawBlock(pdf *fpdf.Fpdf, tr func(string) string, textW float64, heading, year string, rec *model.ExpenseRecord) {
	pdf.SetFont("Helvetica", "B", fontSize)
	pdf.CellFormat(0, 18, tr(heading), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", fontSize)
	pdf.CellFormat(0, lineHeight, tr("Exercício: "+year), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, tr("Número da despesa: "+rec.ExpenseNumber), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", fontSize)
	pdf.CellFormat(0, 18, tr("Dotação orçamentária:"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", fontSize)
	pdf.MultiCell(textW, lineHeight, tr(rec.ClassificationPath()+" - "+rec.ActionDescription), "", "L", false)
	pdf.Ln(6)
	pdf.MultiCell(textW, lineHeight, tr(normalize.NatureCode(rec.NatureCode)+" - "+rec.NatureDescription), "", "L", false)
}

// Package reconcile answers expense-number queries across fiscal years.
// It is the single entry point used by the CLI and the HTTP server.
package reconcile

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retifica-cli/internal/match"
	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/report"
	"github.com/sells-group/retifica-cli/internal/store"
)

var (
	// ErrInvalidQuery is returned for a query with blank or malformed fields.
	ErrInvalidQuery = eris.New("invalid query")
	// ErrUnknownYear is returned when a queried year has no loaded table.
	ErrUnknownYear = eris.New("unknown fiscal year")
	// ErrNotMatched is returned when a declaration is requested for a
	// query whose target was not found.
	ErrNotMatched = eris.New("no matching record")
)

var yearRe = regexp.MustCompile(`^\d{4}$`)

// Datasets provides the current year dataset.
type Datasets interface {
	Get(ctx context.Context) (model.YearDataset, error)
}

// Query identifies an expense number to reconcile.
type Query struct {
	Entity        string `json:"entity"`
	SourceYear    string `json:"source_year"`
	TargetYear    string `json:"target_year"`
	ExpenseNumber string `json:"expense_number"`
}

// Normalize trims every field.
func (q Query) Normalize() Query {
	return Query{
		Entity:        strings.TrimSpace(q.Entity),
		SourceYear:    strings.TrimSpace(q.SourceYear),
		TargetYear:    strings.TrimSpace(q.TargetYear),
		ExpenseNumber: strings.TrimSpace(q.ExpenseNumber),
	}
}

// Validate checks the query shape. It does not consult the dataset.
func (q Query) Validate() error {
	q = q.Normalize()
	switch {
	case q.Entity == "":
		return eris.Wrap(ErrInvalidQuery, "entity is required")
	case q.ExpenseNumber == "":
		return eris.Wrap(ErrInvalidQuery, "expense number is required")
	case !yearRe.MatchString(q.SourceYear):
		return eris.Wrapf(ErrInvalidQuery, "source year %q is not a 4-digit year", q.SourceYear)
	case !yearRe.MatchString(q.TargetYear):
		return eris.Wrapf(ErrInvalidQuery, "target year %q is not a 4-digit year", q.TargetYear)
	}
	return nil
}

// Document is a rendered declaration ready to be served or saved.
type Document struct {
	Filename string
	MIME     string
	Data     []byte
}

// YearSummary describes one loaded fiscal year.
type YearSummary struct {
	Year       string `json:"year" yaml:"year"`
	Source     string `json:"source" yaml:"source"`
	Rows       int    `json:"rows" yaml:"rows"`
	Entities   int    `json:"entities" yaml:"entities"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
}

// Service orchestrates dataset lookup, matching, rendering and logging.
type Service struct {
	datasets Datasets
	matcher  *match.Matcher
	renderer *report.Renderer
	log      store.Store
}

// New creates a Service. log may be nil, in which case declarations are
// not recorded.
func New(datasets Datasets, matcher *match.Matcher, renderer *report.Renderer, log store.Store) *Service {
	return &Service{datasets: datasets, matcher: matcher, renderer: renderer, log: log}
}

// Compare runs the query against the current dataset. Not-found outcomes
// are reported in the result, not as errors.
func (s *Service) Compare(ctx context.Context, q Query) (*model.MatchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q = q.Normalize()

	ds, err := s.datasets.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load datasets")
	}
	for _, y := range []string{q.SourceYear, q.TargetYear} {
		if _, ok := ds.Table(y); !ok {
			return nil, eris.Wrapf(ErrUnknownYear, "no dataset for %s", y)
		}
	}

	res := s.matcher.Match(ds, q.Entity, q.SourceYear, q.TargetYear, q.ExpenseNumber)
	zap.L().Debug("reconcile: compared",
		zap.String("entity", q.Entity),
		zap.String("source_year", q.SourceYear),
		zap.String("target_year", q.TargetYear),
		zap.String("expense_number", q.ExpenseNumber),
		zap.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

// Declaration runs the query and renders the PDF for a matched result.
// The emission is recorded in the declaration log; a failed write is
// logged and does not fail the call.
func (s *Service) Declaration(ctx context.Context, q Query) (*Document, *model.MatchResult, error) {
	res, err := s.Compare(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	if !res.Matched() {
		return nil, res, eris.Wrapf(ErrNotMatched, "%s", res.Outcome)
	}

	data, err := s.renderer.Render(res)
	if err != nil {
		return nil, res, err
	}
	doc := &Document{
		Filename: report.Filename(res.TargetYear),
		MIME:     report.MIME,
		Data:     data,
	}

	if s.log != nil {
		d := model.NewDeclaration(res, doc.Filename)
		if err := s.log.RecordDeclaration(ctx, &d); err != nil {
			zap.L().Error("reconcile: record declaration failed", zap.Error(err))
		} else {
			zap.L().Info("reconcile: declaration emitted",
				zap.String("id", d.ID),
				zap.String("entity", d.Entity),
				zap.String("source_number", d.SourceNumber),
				zap.String("target_number", d.TargetNumber),
			)
		}
	}
	return doc, res, nil
}

// Years summarizes the loaded fiscal years in ascending order.
func (s *Service) Years(ctx context.Context) ([]YearSummary, error) {
	ds, err := s.datasets.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load datasets")
	}

	out := make([]YearSummary, 0, len(ds))
	for _, y := range ds.Years() {
		t, ok := ds.Table(y)
		if !ok {
			continue
		}
		out = append(out, YearSummary{
			Year:       y,
			Source:     t.Source,
			Rows:       t.Len(),
			Entities:   len(ds.Entities(y)),
			Duplicates: t.Duplicates,
		})
	}
	return out, nil
}

// Entities lists entity names for year, or for every year when year is
// empty.
func (s *Service) Entities(ctx context.Context, year string) ([]string, error) {
	ds, err := s.datasets.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load datasets")
	}
	year = strings.TrimSpace(year)
	if year == "" {
		return ds.Entities(), nil
	}
	if _, ok := ds.Table(year); !ok {
		return nil, eris.Wrapf(ErrUnknownYear, "no dataset for %s", year)
	}
	return ds.Entities(year), nil
}

// History lists recorded declarations, newest first.
func (s *Service) History(ctx context.Context, filter store.DeclarationFilter) ([]model.Declaration, error) {
	if s.log == nil {
		return nil, nil
	}
	return s.log.ListDeclarations(ctx, filter)
}

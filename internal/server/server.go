// Package server exposes the reconciliation service over HTTP: an HTML
// form with results and PDF download, plus a small JSON API.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
	"github.com/sells-group/retifica-cli/internal/reconcile"
	"github.com/sells-group/retifica-cli/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Reconciler is the query surface the server needs.
type Reconciler interface {
	Compare(ctx context.Context, q reconcile.Query) (*model.MatchResult, error)
	Declaration(ctx context.Context, q reconcile.Query) (*reconcile.Document, *model.MatchResult, error)
	Years(ctx context.Context) ([]reconcile.YearSummary, error)
	Entities(ctx context.Context, year string) ([]string, error)
	History(ctx context.Context, filter store.DeclarationFilter) ([]model.Declaration, error)
}

// Invalidator drops cached datasets.
type Invalidator interface {
	Invalidate()
}

// Options configures the HTTP server.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds the routes and their dependencies.
type Server struct {
	svc       Reconciler
	datasets  Invalidator
	templates *template.Template
	router    chi.Router
}

// New builds the router. datasets may be nil, in which case reload is a
// no-op.
func New(svc Reconciler, datasets Invalidator, opts Options) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"nature":     normalize.NatureCode,
		"recordView": newRecordView,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, eris.Wrap(err, "server: parse templates")
	}

	s := &Server{svc: svc, datasets: datasets, templates: tmpl}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/consulta", s.handleConsulta)
	r.Get("/declaracao", s.handleDeclaracao)

	r.Route("/api", func(r chi.Router) {
		r.Get("/years", s.handleYears)
		r.Get("/entities", s.handleEntities)
		r.Post("/match", s.handleMatch)
		r.Post("/datasets/reload", s.handleReload)
		r.Get("/declarations", s.handleDeclarations)
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// recordView feeds the "record" template.
type recordView struct {
	Year   string
	Record *model.ExpenseRecord
}

func newRecordView(year string, rec *model.ExpenseRecord) recordView {
	return recordView{Year: year, Record: rec}
}

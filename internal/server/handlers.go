package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/reconcile"
	"github.com/sells-group/retifica-cli/internal/store"
)

type indexPage struct {
	Entities []string
	Years    []string
	Query    reconcile.Query
	Error    string
}

type resultPage struct {
	Result      *model.MatchResult
	DownloadURL string
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := s.indexPage(r, reconcile.Query{})
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, http.StatusOK, "index.html", page)
}

func (s *Server) indexPage(r *http.Request, q reconcile.Query) (indexPage, error) {
	years, err := s.svc.Years(r.Context())
	if err != nil {
		return indexPage{}, err
	}
	entities, err := s.svc.Entities(r.Context(), "")
	if err != nil {
		return indexPage{}, err
	}

	page := indexPage{Entities: entities, Query: q}
	for _, y := range years {
		page.Years = append(page.Years, y.Year)
	}
	// Preselect the two most recent years.
	if n := len(page.Years); n > 0 && q.SourceYear == "" && q.TargetYear == "" {
		page.Query.TargetYear = page.Years[n-1]
		page.Query.SourceYear = page.Years[max(n-2, 0)]
	}
	return page, nil
}

func (s *Server) handleConsulta(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	q := queryFromValues(r.Form)

	res, err := s.svc.Compare(r.Context(), q)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.serverError(w, err)
			return
		}
		page, perr := s.indexPage(r, q)
		if perr != nil {
			s.serverError(w, perr)
			return
		}
		page.Error = userMessage(err)
		s.render(w, status, "index.html", page)
		return
	}

	page := resultPage{Result: res}
	if res.Matched() {
		page.DownloadURL = "/declaracao?" + valuesFromQuery(q).Encode()
	}
	s.render(w, http.StatusOK, "result.html", page)
}

func (s *Server) handleDeclaracao(w http.ResponseWriter, r *http.Request) {
	q := queryFromValues(r.URL.Query())

	doc, _, err := s.svc.Declaration(r.Context(), q)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.serverError(w, err)
			return
		}
		http.Error(w, userMessage(err), status)
		return
	}

	w.Header().Set("Content-Type", doc.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.svc.Years(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.svc.Entities(r.Context(), r.URL.Query().Get("ano"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var q reconcile.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := s.svc.Compare(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if s.datasets != nil {
		s.datasets.Invalidate()
	}
	zap.L().Info("server: dataset cache invalidated")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

func (s *Server) handleDeclarations(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	filter := store.DeclarationFilter{Entity: qs.Get("entity")}

	var err error
	if filter.Limit, err = intParam(qs, "limit"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if filter.Offset, err = intParam(qs, "offset"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	decls, err := s.svc.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if decls == nil {
		decls = []model.Declaration{}
	}
	writeJSON(w, http.StatusOK, decls)
}

// helpers

func queryFromValues(v url.Values) reconcile.Query {
	return reconcile.Query{
		Entity:        v.Get("entidade"),
		SourceYear:    v.Get("origem"),
		TargetYear:    v.Get("destino"),
		ExpenseNumber: v.Get("numero"),
	}.Normalize()
}

func valuesFromQuery(q reconcile.Query) url.Values {
	return url.Values{
		"entidade": {q.Entity},
		"origem":   {q.SourceYear},
		"destino":  {q.TargetYear},
		"numero":   {q.ExpenseNumber},
	}
}

func intParam(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrInvalidQuery), errors.Is(err, reconcile.ErrUnknownYear):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrNotMatched):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrInvalidQuery):
		return "Preencha entidade, exercícios e número da despesa."
	case errors.Is(err, reconcile.ErrUnknownYear):
		return "Exercício sem planilha carregada."
	case errors.Is(err, reconcile.ErrNotMatched):
		return "Nenhuma despesa correspondente para emitir a declaração."
	default:
		return "Erro interno."
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		zap.L().Error("server: render template", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	zap.L().Error("server: request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Package rest exposes an Index over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/engine"
	"github.com/Alp4ka/searchpager/engine/breaker"
	"github.com/Alp4ka/searchpager/engine/sqlsearch"
	logpkg "github.com/Alp4ka/searchpager/internal/logger"
)

// Server serves paginated searches over one index.
type Server struct {
	index       *searchpager.Index
	sortMapping searchpager.FieldMapping
}

// NewServer creates a Server. sortMapping lists the sort aliases clients may
// pass in the sort parameter.
func NewServer(index *searchpager.Index, sortMapping searchpager.FieldMapping) *Server {
	return &Server{index: index, sortMapping: sortMapping}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.health)
	r.Get("/v1/search", s.search)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// search handles GET /v1/search?q=&mode=&page=&cursor=&limit=&sort=.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	mode, err := searchpager.ParseMode(query.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mode", err.Error())
		return
	}

	perPage := s.index.PerPage()
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		perPage = searchpager.NormalizePerPageMax(n, s.index.MaxPerPage())
	}

	var sort searchpager.SortSpec
	if raw := splitSort(query["sort"]); len(raw) > 0 {
		if sort, err = searchpager.ParseSort(raw, s.sortMapping); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_sort", err.Error())
			return
		}
	}

	params := searchpager.QueryParams{
		Query: searchpager.TermQuery(query.Get("q")),
		Limit: perPage,
		Sort:  sort,
		Mode:  mode,
	}

	page := 1
	if mode == searchpager.ModeOffset {
		if raw := query.Get(s.index.PageParam()); raw != "" {
			if page, err = strconv.Atoi(raw); err != nil || page < 1 {
				writeError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
				return
			}
		}
		params.Offset = (page - 1) * perPage
	}

	coll, err := s.index.SearchByQuery(r.Context(), searchpager.NewHTTPRequestContext(r), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if mode == searchpager.ModeOffset {
		writeJSON(w, http.StatusOK, coll.OffsetPage(page, perPage))
		return
	}

	cursorPage, err := coll.CursorPage()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cursorPage)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	log := logpkg.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("search request failed", zap.String("index", s.index.Name()), zap.Error(err))
	} else {
		log.Info("search request rejected", zap.String("index", s.index.Name()), zap.Error(err))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	writeError(w, status, code, msg)
}

func errorStatus(err error) (int, string) {
	var engineErr *engine.Error

	switch {
	case errors.Is(err, searchpager.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor"
	case errors.Is(err, sqlsearch.ErrUnsupportedQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, searchpager.ErrConfiguration):
		// Client input is validated before the search; what is left is the
		// index setup, e.g. cursor mode without a default sort.
		return http.StatusInternalServerError, "configuration_error"
	case engine.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, breaker.ErrOpen):
		return http.StatusServiceUnavailable, "engine_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "engine_timeout"
	case errors.As(err, &engineErr):
		return http.StatusBadGateway, "engine_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// splitSort accepts both repeated sort parameters and comma separated lists.
func splitSort(values []string) []string {
	var ret []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ret = append(ret, part)
			}
		}
	}

	return ret
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

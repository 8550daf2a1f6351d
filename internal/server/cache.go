package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"weft/internal/cache"
)

const maxCacheBody = 64 << 10

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handleSummaryCache(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.cacheLookup(w, r)
	case http.MethodPost:
		s.cacheStore(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) cacheLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, hit, err := s.deps.Cache.Lookup(q.Get("id"), q.Get("style"))
	if err != nil {
		s.cacheError(w, err)
		return
	}
	if !hit {
		writeJSON(w, http.StatusOK, map[string]any{"cached": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cached": true, "summary": summary})
}

func (s *Server) cacheStore(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCacheBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	id, style, summary := body["id"], body["style"], body["summary"]
	if isBlank(id) || isBlank(style) || isBlank(summary) {
		writeError(w, http.StatusBadRequest, "Missing id, style, or summary")
		return
	}
	idStr, ok1 := id.(string)
	styleStr, ok2 := style.(string)
	summaryStr, ok3 := summary.(string)
	if !ok1 || !ok2 || !ok3 {
		writeError(w, http.StatusBadRequest, "Parameters must be strings")
		return
	}

	if err := s.deps.Cache.Store(idStr, styleStr, summaryStr); err != nil {
		s.cacheError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (s *Server) cacheError(w http.ResponseWriter, err error) {
	var verr *cache.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Msg)
		return
	}
	s.logger.Error("Summary cache failure", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal error")
}

// isBlank treats absent, null, empty, zero and false values as missing.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

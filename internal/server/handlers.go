package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/filter"
	"weft/internal/llm"
	"weft/internal/model"
	"weft/internal/store"
)

const maxJSONBody = 16 << 10

// articleView is an article as listed to clients, with its score inline.
type articleView struct {
	model.Article
	Score *int `json:"score,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"cache_entries": s.deps.Cache.Len(),
	})
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := s.deps.Threshold
	if raw := q.Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10 {
			writeError(w, http.StatusBadRequest, "threshold must be between 1 and 10")
			return
		}
		threshold = n
	}

	articles, err := s.deps.Store.ListArticles(r.Context(), 0)
	if err != nil {
		s.internalError(w, "Failed to list articles", err)
		return
	}
	scores, err := s.deps.Store.Scores(r.Context())
	if err != nil {
		s.internalError(w, "Failed to load scores", err)
		return
	}

	visible := filter.Apply(articles, scores, filter.Options{
		Mode:      filter.ParseMode(q.Get("filter")),
		Threshold: threshold,
		Search:    q.Get("q"),
	})

	out := views(visible, scores)
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": out,
		"total":    len(articles),
		// Lets clients offer /api/ask for question-like searches.
		"question": answer.IsQuestion(q.Get("q")),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logger := s.logger.With(zap.String("article_id", id))

	article, ok := s.loadArticle(w, r, id)
	if !ok {
		return
	}

	style := r.URL.Query().Get("style")
	if style == "" {
		style = s.deps.SummaryStyle
	}

	res, err := s.deps.Summarizer.Generate(r.Context(), *article, style)
	if err != nil {
		status, msg := llmStatus(err)
		logger.Warn("Summary generation failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	if !res.Cached {
		_, err := s.deps.Store.UpdateArticle(r.Context(), id, func(a *model.Article) {
			a.Summary = res.Summary
			a.SummaryStyle = res.Style
			if res.Content != "" {
				a.Content = res.Content
			}
		})
		if err != nil {
			logger.Warn("Summary not persisted", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"style":   res.Style,
		"summary": res.Summary,
		"cached":  res.Cached,
	})
}

type readRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req readRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}
	if req.Seconds < 0 {
		writeError(w, http.StatusBadRequest, "seconds must not be negative")
		return
	}

	article, err := s.deps.Store.UpdateArticle(r.Context(), id, func(a *model.Article) { a.Read = true })
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	} else if err != nil {
		s.internalError(w, "Failed to mark article read", err)
		return
	}

	rec, counted := model.NewReadRecord(*article, req.Seconds, time.Now())
	if counted {
		if err := s.deps.Store.RecordRead(r.Context(), rec); err != nil {
			s.internalError(w, "Failed to record read", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"read": true, "recorded": counted})
}

// articlePatch carries the reader flags a client may toggle.
type articlePatch struct {
	Liked      *bool `json:"liked"`
	Disliked   *bool `json:"disliked"`
	Bookmarked *bool `json:"bookmarked"`
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var p articlePatch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	article, err := s.deps.Store.UpdateArticle(r.Context(), id, func(a *model.Article) {
		if p.Liked != nil {
			a.Liked = *p.Liked
			if a.Liked {
				a.Disliked = false
			}
		}
		if p.Disliked != nil {
			a.Disliked = *p.Disliked
			if a.Disliked {
				a.Liked = false
			}
		}
		if p.Bookmarked != nil {
			a.Bookmarked = *p.Bookmarked
		}
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	} else if err != nil {
		s.internalError(w, "Failed to update article", err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "Feed refresh is not configured")
		return
	}

	// A client disconnect must not abort a half-written refresh.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 40*time.Second)
	defer cancel()

	report, err := s.deps.Refresher.Refresh(ctx)
	if err != nil {
		s.internalError(w, "Failed to refresh feeds", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"fetched":        report.Fetched,
		"failed_sources": report.Failed,
		"job_id":         report.JobID.String(),
	})
}

func (s *Server) loadArticle(w http.ResponseWriter, r *http.Request, id string) (*model.Article, bool) {
	article, err := s.deps.Store.GetArticle(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return nil, false
	} else if err != nil {
		s.internalError(w, "Failed to load article", err)
		return nil, false
	}
	return article, true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

// llmStatus maps a generation failure onto an HTTP status and message.
func llmStatus(err error) (int, string) {
	var (
		rl *llm.RateLimitError
		te *llm.TimeoutError
		pe *llm.ProviderError
	)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, "LLM API key not configured"
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, "Rate limited, please try again later"
	case errors.As(err, &te):
		return http.StatusGatewayTimeout, "LLM request timed out"
	case errors.Is(err, llm.ErrModelNotAllowed),
		errors.Is(err, llm.ErrEmptyPrompt),
		errors.Is(err, llm.ErrPromptTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &pe):
		return http.StatusBadGateway, "LLM provider error"
	}
	return http.StatusBadGateway, "Summary generation failed"
}

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/model"
)

func views(articles []model.Article, scores model.ScoreMap) []articleView {
	out := make([]articleView, len(articles))
	for i, a := range articles {
		out[i] = articleView{Article: a}
		if sc, ok := scores.Get(a.ID); ok {
			out[i].Score = &sc
		}
	}
	return out
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if s.deps.Briefer == nil {
		writeError(w, http.StatusServiceUnavailable, "Briefing is not configured")
		return
	}

	res, err := s.deps.Briefer.Generate(r.Context())
	if err != nil {
		status, msg := llmStatus(err)
		s.logger.Warn("Briefing failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":     res.Day,
		"briefing": res.Text,
		"cached":   res.Cached,
		"articles": views(res.Articles, res.Scores),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Answerer == nil {
		writeError(w, http.StatusServiceUnavailable, "Answers are not configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	res, err := s.deps.Answerer.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion), errors.Is(err, answer.ErrQuestionTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, answer.ErrNoRelevantSource):
		writeError(w, http.StatusNotFound, "No relevant articles found for this question. Try different keywords.")
		return
	case err != nil:
		status, msg := llmStatus(err)
		s.logger.Warn("Answer failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"question": res.Question,
		"answer":   res.Answer,
		"sources":  views(res.Sources, nil),
	})
}

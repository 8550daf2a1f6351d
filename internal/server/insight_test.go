package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/briefing"
	"weft/internal/cache"
	"weft/internal/llm"
	"weft/internal/model"
)

type stubBriefer struct {
	res briefing.Result
	err error
}

func (b *stubBriefer) Generate(context.Context) (briefing.Result, error) {
	return b.res, b.err
}

type stubAnswerer struct {
	question string
	res      answer.Result
	err      error
}

func (a *stubAnswerer) Ask(_ context.Context, q string) (answer.Result, error) {
	a.question = q
	return a.res, a.err
}

func (f *fixture) withInsights(b Briefer, a Answerer) {
	f.srv = NewServer(Deps{
		Store:      f.store,
		Cache:      cache.New(),
		Summarizer: f.sum,
		Refresher:  f.ref,
		Briefer:    b,
		Answerer:   a,
	}, zap.NewNop())
}

func TestBriefing(t *testing.T) {
	f := newFixture(t)
	articles := f.seed(t, "chips", "rust")
	b := &stubBriefer{res: briefing.Result{
		Day:      "2026-03-01",
		Text:     "HEADLINE: chips",
		Cached:   true,
		Articles: articles,
		Scores:   model.ScoreMap{articles[0].ID: 8},
	}}
	f.withInsights(b, nil)

	rec := f.do(t, http.MethodGet, "/api/briefing", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date     string `json:"date"`
		Briefing string `json:"briefing"`
		Cached   bool   `json:"cached"`
		Articles []struct {
			ID    string `json:"id"`
			Score *int   `json:"score"`
		} `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-03-01", body.Date)
	assert.Equal(t, "HEADLINE: chips", body.Briefing)
	assert.True(t, body.Cached)
	require.Len(t, body.Articles, 2)
	require.NotNil(t, body.Articles[0].Score)
	assert.Equal(t, 8, *body.Articles[0].Score)
	assert.Nil(t, body.Articles[1].Score)

	// A day with nothing published is not an error.
	b.res = briefing.Result{Day: "2026-03-02"}
	rec = f.do(t, http.MethodGet, "/api/briefing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", decode(t, rec)["briefing"])

	b.err = &llm.RateLimitError{StatusCode: 429}
	rec = f.do(t, http.MethodGet, "/api/briefing", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	articles := f.seed(t, "chips")
	a := &stubAnswerer{res: answer.Result{
		Question: "What about chips?",
		Answer:   "Chips shipped [1].",
		Sources:  articles,
	}}
	f.withInsights(nil, a)

	rec := f.do(t, http.MethodPost, "/api/ask", `{"question":"What about chips?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Chips shipped [1].", body["answer"])
	assert.Equal(t, "What about chips?", a.question)
	sources, ok := body["sources"].([]any)
	require.True(t, ok)
	assert.Len(t, sources, 1)

	cases := []struct {
		body   string
		err    error
		status int
	}{
		{`not json`, nil, http.StatusBadRequest},
		{`{"question":""}`, answer.ErrEmptyQuestion, http.StatusBadRequest},
		{`{"question":"` + strings.Repeat("q", 501) + `"}`, answer.ErrQuestionTooLong, http.StatusBadRequest},
		{`{"question":"Anything on gardening?"}`, answer.ErrNoRelevantSource, http.StatusNotFound},
		{`{"question":"What about chips?"}`, llm.ErrNotConfigured, http.StatusServiceUnavailable},
		{`{"question":"What about chips?"}`, &llm.TimeoutError{}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		a.err = tc.err
		rec := f.do(t, http.MethodPost, "/api/ask", tc.body)
		assert.Equal(t, tc.status, rec.Code, tc.body)
	}
}

func TestInsightsNotConfigured(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/briefing", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/ask", `{"question":"x"}`).Code)
}

func TestListArticles_FlagsQuestions(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "chips")

	rec := f.do(t, http.MethodGet, "/api/articles?q=what+happened+to+chips", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["question"])

	rec = f.do(t, http.MethodGet, "/api/articles?q=chips", "")
	assert.Equal(t, false, decode(t, rec)["question"])
}

// Package briefing writes one LLM digest of the day's highest scored
// articles and keeps it for the rest of the day.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"weft/internal/llm"
	"weft/internal/model"
)

const (
	// TopArticles is how many of today's articles the briefing covers.
	TopArticles = 10

	snippetRunes = 150
	dayLayout    = "2006-01-02"

	briefingModel       = llm.ModelVersatile
	briefingMaxTokens   = 800
	briefingTemperature = 0.5
)

const promptTemplate = `You are a senior tech news analyst writing a daily briefing.

Today's top %d articles (scored by AI relevance):

%s

Write a concise daily briefing with:
1. **HEADLINE**: The single most important story in one sentence
2. **KEY STORIES**: 3-5 bullet points covering the most significant developments
3. **PATTERN**: One sentence on what theme or trend connects today's news
4. **WORTH WATCHING**: One emerging story that might become bigger

Keep it under 300 words. Be specific, cite article titles. No filler.`

// Store is the persistence the briefing reads from and caches into.
type Store interface {
	ListArticles(ctx context.Context, limit int) ([]model.Article, error)
	Scores(ctx context.Context) (model.ScoreMap, error)
	Briefing(ctx context.Context, day string) (string, bool, error)
	SaveBriefing(ctx context.Context, day, text string) error
}

type Result struct {
	Day      string
	Text     string
	Cached   bool
	Articles []model.Article
	Scores   model.ScoreMap
}

// Empty reports whether there was nothing published today to brief on.
func (r Result) Empty() bool { return len(r.Articles) == 0 }

type Generator struct {
	store  Store
	llm    llm.Generator
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Generator)

// WithClock overrides the time source used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(st Store, gen llm.Generator, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{store: st, llm: gen, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns today's briefing, calling the LLM at most once per day.
// With no articles from today it returns an empty Result and no error.
func (g *Generator) Generate(ctx context.Context) (Result, error) {
	today := StartOfDay(g.now())
	res := Result{Day: today.Format(dayLayout)}
	logger := g.logger.With(zap.String("day", res.Day))

	articles, err := g.store.ListArticles(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("list articles: %w", err)
	}
	scores, err := g.store.Scores(ctx)
	if err != nil {
		return res, fmt.Errorf("load scores: %w", err)
	}

	res.Articles = Select(articles, scores, today, TopArticles)
	res.Scores = scores
	if res.Empty() {
		return res, nil
	}

	text, hit, err := g.store.Briefing(ctx, res.Day)
	if err != nil {
		logger.Warn("Briefing cache lookup failed", zap.Error(err))
	} else if hit {
		res.Text, res.Cached = text, true
		return res, nil
	}

	text, err = g.llm.Generate(ctx, Prompt(res.Articles, scores), llm.Options{
		Model:       briefingModel,
		MaxTokens:   briefingMaxTokens,
		Temperature: llm.Temperature(briefingTemperature),
	})
	if err != nil {
		return res, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return res, &llm.ProviderError{Err: errors.New("empty briefing")}
	}
	res.Text = text

	if err := g.store.SaveBriefing(ctx, res.Day, text); err != nil {
		logger.Warn("Briefing not cached", zap.Error(err))
	}
	logger.Info("Briefing generated", zap.Int("articles", len(res.Articles)))
	return res, nil
}

// StartOfDay is local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Select keeps articles published since day, highest score first
// (unscored count as 0), and returns at most limit of them.
func Select(articles []model.Article, scores model.ScoreMap, day time.Time, limit int) []model.Article {
	var out []model.Article
	for _, a := range articles {
		if !a.PublishedAt.Before(day) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Prompt lists the articles with their scores and a short snippet.
func Prompt(articles []model.Article, scores model.ScoreMap) string {
	lines := make([]string, len(articles))
	for i, a := range articles {
		score := "?"
		if s, ok := scores.Get(a.ID); ok {
			score = fmt.Sprint(s)
		}
		lines[i] = fmt.Sprintf("[%d] \"%s\" (%s, score: %s/10)\n    %s", i+1, a.Title, a.Source, score, snippet(a.Description))
	}
	return fmt.Sprintf(promptTemplate, len(articles), strings.Join(lines, "\n\n"))
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) > snippetRunes {
		return string(r[:snippetRunes])
	}
	return s
}

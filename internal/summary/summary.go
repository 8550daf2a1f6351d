// Package summary generates per-style article summaries, consulting the
// shared summary cache before calling the LLM.
package summary

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"weft/internal/cache"
	"weft/internal/feed"
	"weft/internal/llm"
	"weft/internal/model"
)

const (
	// Descriptions shorter than this are enriched from the article page.
	enrichBelow     = 200
	maxContentRunes = 6000
	scrapeTimeout   = 15 * time.Second

	summaryModel     = llm.ModelVersatile
	summaryMaxTokens = 400
)

// Cache is the summary cache as seen by the generator.
type Cache interface {
	Lookup(id, style string) (string, bool, error)
	Store(id, style, summary string) error
}

// Scraper downloads and extracts the readable part of a web page.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

type Result struct {
	Summary string
	Style   string
	Cached  bool

	// Content is the extracted page text when enrichment ran.
	Content string
}

type Generator struct {
	cache   Cache
	llm     llm.Generator
	scraper Scraper
	logger  *zap.Logger
}

type Option func(*Generator)

// WithScraper replaces the page scraper. Nil disables enrichment.
func WithScraper(s Scraper) Option {
	return func(g *Generator) { g.scraper = s }
}

func NewGenerator(c Cache, gen llm.Generator, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		cache:   c,
		llm:     gen,
		scraper: &DefaultScraper{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the summary of article in the given style, serving it
// from the cache when possible. Fresh summaries are written back to the
// cache; a failed write is logged and does not fail the call.
func (g *Generator) Generate(ctx context.Context, article model.Article, style string) (Result, error) {
	style = NormalizeStyle(style)
	logger := g.logger.With(zap.String("article_id", article.ID), zap.String("style", style))

	summary, hit, err := g.cache.Lookup(article.ID, style)
	if err != nil {
		logger.Warn("Summary cache lookup rejected", zap.Error(err))
	} else if hit {
		logger.Debug("Summary cache hit")
		return Result{Summary: summary, Style: style, Cached: true}, nil
	}

	content, scraped := g.content(article, logger)

	text, err := g.llm.Generate(ctx, Prompt(style, article, content), llm.Options{
		Model:     summaryModel,
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &llm.ProviderError{Err: errors.New("empty summary")}
	}

	if err := g.cache.Store(article.ID, style, text); err != nil {
		logger.Warn("Summary not cached", zap.Error(err))
	}

	res := Result{Summary: text, Style: style}
	if scraped {
		res.Content = content
	}
	return res, nil
}

// content picks the text to summarize. Short descriptions are replaced by
// the readable page text when it can be extracted.
func (g *Generator) content(a model.Article, logger *zap.Logger) (string, bool) {
	if a.Content != "" {
		return truncate(a.Content), false
	}
	if utf8.RuneCountInString(a.Description) >= enrichBelow || g.scraper == nil || a.Link == "" {
		return a.Description, false
	}

	page, err := g.scraper.Scrape(a.Link, scrapeTimeout)
	if err != nil || page == nil {
		logger.Debug("Enrichment failed, using description", zap.Error(err))
		return a.Description, false
	}
	text := feed.CleanHTML(page.Content)
	if utf8.RuneCountInString(text) <= utf8.RuneCountInString(a.Description) {
		return a.Description, false
	}
	return truncate(text), true
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxContentRunes {
		return s
	}
	return string([]rune(s)[:maxContentRunes])
}

var _ Cache = (*cache.Cache)(nil)

// Package answer answers free-form questions from the stored articles,
// citing the ones it used.
package answer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"weft/internal/llm"
	"weft/internal/model"
)

const (
	// MaxSources bounds how many articles go into the prompt.
	MaxSources = 8
	// MaxQuestionLength keeps questions to a sensible size.
	MaxQuestionLength = 500

	answerModel       = llm.ModelVersatile
	answerMaxTokens   = 600
	answerTemperature = 0.3
)

var (
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrQuestionTooLong  = errors.New("question too long (max 500 chars)")
	ErrNoRelevantSource = errors.New("no relevant articles found for this question")
)

const promptTemplate = `Based on these recent tech/AI news articles, answer the question.

ARTICLES:
%s

QUESTION: %s

Rules:
- Answer based ONLY on the provided articles
- Cite sources as [1], [2] etc.
- If the articles don't contain enough info, say so
- Be concise (max 200 words)
- If multiple articles discuss this, synthesize them`

var (
	punctuation = strings.NewReplacer("?", "", ".", "", ",", "", "!", "")
	questionRe  = regexp.MustCompile(`(?i)^(what|why|how|when|who|which|is|are|will|can|does|do|should|tell|explain|compare)\b`)
)

// Articles is the read side of the store the engine searches.
type Articles interface {
	ListArticles(ctx context.Context, limit int) ([]model.Article, error)
}

type Result struct {
	Question string
	Answer   string
	Sources  []model.Article
}

type Engine struct {
	articles Articles
	llm      llm.Generator
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngine(articles Articles, gen llm.Generator, logger *zap.Logger) *Engine {
	return &Engine{articles: articles, llm: gen, logger: logger, now: time.Now}
}

// IsQuestion reports whether a search box query reads like a question
// rather than a keyword search.
func IsQuestion(q string) bool {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) <= 10 {
		return false
	}
	return strings.HasSuffix(q, "?") || questionRe.MatchString(q)
}

// Ask answers question from at most MaxSources relevant articles. It
// returns ErrNoRelevantSource without calling the LLM when nothing matches.
func (e *Engine) Ask(ctx context.Context, question string) (Result, error) {
	question = strings.TrimSpace(question)
	res := Result{Question: question}
	switch {
	case question == "":
		return res, ErrEmptyQuestion
	case utf8.RuneCountInString(question) > MaxQuestionLength:
		return res, ErrQuestionTooLong
	}

	articles, err := e.articles.ListArticles(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("list articles: %w", err)
	}
	res.Sources = FindRelevant(articles, question, MaxSources)
	if len(res.Sources) == 0 {
		return res, ErrNoRelevantSource
	}

	text, err := e.llm.Generate(ctx, Prompt(res.Sources, question, e.now()), llm.Options{
		Model:       answerModel,
		MaxTokens:   answerMaxTokens,
		Temperature: llm.Temperature(answerTemperature),
	})
	if err != nil {
		return res, err
	}
	res.Answer = strings.TrimSpace(text)
	if res.Answer == "" {
		return res, &llm.ProviderError{Err: errors.New("empty answer")}
	}

	e.logger.Debug("Question answered", zap.Int("sources", len(res.Sources)))
	return res, nil
}

// QueryWords lowercases the question, drops punctuation and keeps words
// longer than three characters.
func QueryWords(question string) []string {
	var words []string
	for _, w := range strings.Fields(punctuation.Replace(strings.ToLower(question))) {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// FindRelevant ranks articles by how many query words appear in their
// title, description or keywords. Articles with no match are dropped; ties
// keep the input order.
func FindRelevant(articles []model.Article, question string, limit int) []model.Article {
	words := QueryWords(question)
	if len(words) == 0 {
		return nil
	}

	type ranked struct {
		article model.Article
		matches int
	}
	var hits []ranked
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Description + " " + strings.Join(a.Keywords, " "))
		n := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, ranked{a, n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].matches > hits[j].matches })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.Article, len(hits))
	for i, h := range hits {
		out[i] = h.article
	}
	return out
}

// Prompt numbers the sources so the answer can cite them.
func Prompt(sources []model.Article, question string, now time.Time) string {
	blocks := make([]string, len(sources))
	for i, a := range sources {
		blocks[i] = fmt.Sprintf("[%d] \"%s\" (%s, %s):\n%s", i+1, a.Title, a.Source, Age(now, a.PublishedAt), a.Description)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(blocks, "\n\n"), question)
}

// Age renders how long ago t was, the way the reader shows dates.
func Age(now, t time.Time) string {
	d := now.Sub(t)
	hours := int(d.Hours())
	days := hours / 24
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("Jan 2")
}

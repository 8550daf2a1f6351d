package answer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weft/internal/llm"
	"weft/internal/model"
)

type stubLLM struct {
	calls  int
	prompt string
	opts   llm.Options
	reply  string
	err    error
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	s.calls++
	s.prompt = prompt
	s.opts = opts
	return s.reply, s.err
}

type staticArticles []model.Article

func (s staticArticles) ListArticles(context.Context, int) ([]model.Article, error) {
	return s, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func article(title, desc string, age time.Duration) model.Article {
	a := model.NewArticle(title, "https://news.test/"+title, "News", "daily", now.Add(-age))
	a.Description = desc
	return a
}

func TestQueryWords(t *testing.T) {
	assert.Equal(t, []string{"what", "nvidia", "announce", "today"}, QueryWords("What did Nvidia announce today?"))
	assert.Empty(t, QueryWords("is it ok?"))
}

func TestFindRelevantRanksByOverlap(t *testing.T) {
	one := article("Nvidia ships new GPU", "A chip launch", time.Hour)
	two := article("Nvidia GPU prices and supply", "Chip shortage continues", time.Hour)
	none := article("Gardening tips", "Tomatoes", time.Hour)

	got := FindRelevant([]model.Article{one, none, two}, "Why are Nvidia GPU prices rising?", 8)
	require.Len(t, got, 2)
	assert.Equal(t, two.ID, got[0].ID, "more matching words rank first")
	assert.Equal(t, one.ID, got[1].ID)

	var many []model.Article
	for i := range 12 {
		many = append(many, article(fmt.Sprintf("nvidia %d", i), "", time.Hour))
	}
	assert.Len(t, FindRelevant(many, "nvidia news", MaxSources), MaxSources)
}

func TestFindRelevantSearchesKeywords(t *testing.T) {
	a := article("Launch day", "", time.Hour)
	a.Keywords = []string{"kubernetes"}
	got := FindRelevant([]model.Article{a}, "Anything about Kubernetes?", 8)
	require.Len(t, got, 1)
}

func TestAsk(t *testing.T) {
	src := article("Nvidia ships new GPU", "A chip launch", 3*time.Hour)
	gen := &stubLLM{reply: "Nvidia shipped a GPU [1].\n"}
	e := NewEngine(staticArticles{src, article("Gardening", "Tomatoes", time.Hour)}, gen, zap.NewNop())
	e.now = func() time.Time { return now }

	res, err := e.Ask(context.Background(), "  What did Nvidia ship?  ")
	require.NoError(t, err)
	assert.Equal(t, "What did Nvidia ship?", res.Question)
	assert.Equal(t, "Nvidia shipped a GPU [1].", res.Answer)
	require.Len(t, res.Sources, 1)

	assert.Contains(t, gen.prompt, "[1] \"Nvidia ships new GPU\" (News, 3h ago):\nA chip launch")
	assert.Contains(t, gen.prompt, "QUESTION: What did Nvidia ship?")
	assert.Equal(t, llm.ModelVersatile, gen.opts.Model)
	assert.Equal(t, 600, gen.opts.MaxTokens)
	require.NotNil(t, gen.opts.Temperature)
	assert.Equal(t, 0.3, *gen.opts.Temperature)
}

func TestAskErrors(t *testing.T) {
	gen := &stubLLM{reply: "x"}
	e := NewEngine(staticArticles{article("Gardening", "Tomatoes", time.Hour)}, gen, zap.NewNop())

	_, err := e.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = e.Ask(context.Background(), strings.Repeat("q", MaxQuestionLength+1))
	assert.ErrorIs(t, err, ErrQuestionTooLong)

	_, err = e.Ask(context.Background(), "What happened with Nvidia?")
	assert.ErrorIs(t, err, ErrNoRelevantSource)
	assert.Equal(t, 0, gen.calls, "no LLM call without sources")

	gen.err = &llm.RateLimitError{StatusCode: 429}
	_, err = e.Ask(context.Background(), "Any gardening news?")
	var rl *llm.RateLimitError
	assert.ErrorAs(t, err, &rl)
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, IsQuestion("what is new in rust"))
	assert.True(t, IsQuestion("rust 2026 edition?"))
	assert.False(t, IsQuestion("why?"), "too short")
	assert.False(t, IsQuestion("rust compiler news"))
	assert.False(t, IsQuestion("whatever happened"), "needs a word boundary")
}

func TestAge(t *testing.T) {
	assert.Equal(t, "Just now", Age(now, now.Add(-30*time.Minute)))
	assert.Equal(t, "5h ago", Age(now, now.Add(-5*time.Hour)))
	assert.Equal(t, "Yesterday", Age(now, now.Add(-30*time.Hour)))
	assert.Equal(t, "3d ago", Age(now, now.Add(-72*time.Hour)))
	assert.Equal(t, "Feb 1", Age(now, now.Add(-28*24*time.Hour)))
}

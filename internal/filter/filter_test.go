package filter_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/filter"
	"weft/internal/model"
)

var base = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func article(id, source string, age time.Duration) model.Article {
	return model.Article{
		ID:          id,
		Title:       "Title " + id,
		Description: "Description of " + id,
		Source:      source,
		PublishedAt: base.Add(-age),
	}
}

func ids(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func TestSmartFiltersAndSorts(t *testing.T) {
	articles := []model.Article{
		article("a", "X", 3*time.Hour),
		article("b", "X", 1*time.Hour),
		article("c", "X", 2*time.Hour),
	}
	scores := model.ScoreMap{"a": 9, "c": 3}

	got := filter.Apply(articles, scores, filter.Options{Mode: filter.ModeSmart, Threshold: 6})
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestSmartOrdering(t *testing.T) {
	articles := []model.Article{
		article("old-unscored", "X", 5*time.Hour),
		article("seven", "X", 4*time.Hour),
		article("new-unscored", "X", 1*time.Hour),
		article("nine", "X", 6*time.Hour),
		article("seven-newer", "X", 2*time.Hour),
	}
	scores := model.ScoreMap{"seven": 7, "nine": 9, "seven-newer": 7}

	got := filter.Apply(articles, scores, filter.Options{})
	assert.Equal(t, []string{"nine", "seven-newer", "seven", "new-unscored", "old-unscored"}, ids(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	articles := []model.Article{article("a", "X", 3*time.Hour), article("b", "X", time.Hour)}
	scores := model.ScoreMap{"b": 9}

	filter.Apply(articles, scores, filter.Options{Mode: filter.ModeSmart})
	assert.Equal(t, []string{"a", "b"}, ids(articles))
}

func TestTop(t *testing.T) {
	articles := []model.Article{
		article("a", "X", 0), article("b", "X", 0), article("c", "X", 0), article("d", "X", 0),
	}
	scores := model.ScoreMap{"a": 8, "b": 10, "c": 7}

	got := filter.Apply(articles, scores, filter.Options{Mode: filter.ModeTop})
	assert.Equal(t, []string{"b", "a"}, ids(got))
}

func TestUnreadAndBookmarked(t *testing.T) {
	a := article("a", "X", 0)
	b := article("b", "X", 0)
	b.Read = true
	b.Bookmarked = true
	articles := []model.Article{a, b}

	assert.Equal(t, []string{"a"}, ids(filter.Apply(articles, nil, filter.Options{Mode: filter.ModeUnread})))
	assert.Equal(t, []string{"b"}, ids(filter.Apply(articles, nil, filter.Options{Mode: filter.ModeBookmarked})))
}

func TestDiscover(t *testing.T) {
	var articles []model.Article
	scores := model.ScoreMap{}

	// Read history makes S0..S4 the top-read sources.
	for s := 0; s < 5; s++ {
		for r := 0; r <= 5-s; r++ {
			a := article(fmt.Sprintf("read-%d-%d", s, r), fmt.Sprintf("S%d", s), 0)
			a.Read = true
			articles = append(articles, a)
		}
	}
	// A sixth read source with fewer reads is not excluded.
	extra := article("read-extra", "S5", 0)
	extra.Read = true
	articles = append(articles, extra)

	for i := 0; i < 30; i++ {
		a := article(fmt.Sprintf("cand-%d", i), fmt.Sprintf("S%d", i%7), 0)
		scores[a.ID] = 3 + i%5
		articles = append(articles, a)
	}
	outOfRange := article("too-high", "S6", 0)
	scores[outOfRange.ID] = 8
	articles = append(articles, outOfRange)

	got := filter.Apply(articles, scores, filter.Options{Mode: filter.ModeDiscover, Rand: rand.New(rand.NewSource(1))})

	require.LessOrEqual(t, len(got), 15)
	require.NotEmpty(t, got)
	for _, a := range got {
		s, ok := scores[a.ID]
		require.True(t, ok)
		assert.GreaterOrEqual(t, s, 3)
		assert.LessOrEqual(t, s, 7)
		assert.Contains(t, []string{"S5", "S6"}, a.Source)
	}

	again := filter.Apply(articles, scores, filter.Options{Mode: filter.ModeDiscover, Rand: rand.New(rand.NewSource(1))})
	assert.Equal(t, ids(got), ids(again), "same seed gives the same shuffle")
}

func TestDiscoverCapsAtFifteen(t *testing.T) {
	var articles []model.Article
	scores := model.ScoreMap{}
	for i := 0; i < 40; i++ {
		a := article(fmt.Sprintf("c%d", i), "S", 0)
		scores[a.ID] = 5
		articles = append(articles, a)
	}
	got := filter.Apply(articles, scores, filter.Options{Mode: filter.ModeDiscover, Rand: rand.New(rand.NewSource(7))})
	assert.Len(t, got, 15)
}

func TestSearch(t *testing.T) {
	a := article("a", "Hacker News", 0)
	a.Title = "Straße networking in Go"
	b := article("b", "Lobsters", 0)
	b.Description = "A deep dive into TRANSFORMERS"
	articles := []model.Article{a, b}

	tests := []struct {
		query string
		want  []string
	}{
		{"hacker", []string{"a"}},
		{"transformers", []string{"b"}},
		{"STRASSE", []string{"a"}},
		{"  ", []string{"a", "b"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := filter.Apply(articles, nil, filter.Options{Mode: filter.ModeUnread, Search: tt.query})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestParseModeFallsBackToSmart(t *testing.T) {
	assert.Equal(t, filter.ModeTop, filter.ParseMode("TOP"))
	assert.Equal(t, filter.ModeSmart, filter.ParseMode("briefing"))
	assert.Equal(t, filter.ModeSmart, filter.ParseMode(""))
}

func TestTopReadSources(t *testing.T) {
	mk := func(src string, read bool) model.Article {
		a := article(src, src, 0)
		a.Read = read
		return a
	}
	articles := []model.Article{
		mk("A", true), mk("B", true), mk("B", true), mk("C", false), mk("D", true),
	}
	assert.Equal(t, []string{"B", "A"}, filter.TopReadSources(articles, 2))
	assert.Equal(t, []string{"B", "A", "D"}, filter.TopReadSources(articles, 5))
}

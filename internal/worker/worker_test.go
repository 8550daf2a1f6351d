package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weft/internal/llm"
	"weft/internal/model"
	"weft/internal/scorer"
	"weft/internal/store"
)

type MockLLM struct {
	mu    sync.Mutex
	calls int
	Reply string
	Err   error
}

func (m *MockLLM) Generate(_ context.Context, _ string, _ llm.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Reply, m.Err
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newStore(t *testing.T) *store.HybridStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Redis-only mode; the scorer never writes heavy fields.
	st, err := store.NewHybridStore(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st store.Store, n int) []model.Article {
	t.Helper()
	now := time.Now()
	articles := make([]model.Article, n)
	for i := range articles {
		articles[i] = model.NewArticle(
			fmt.Sprintf("Story %d", i),
			fmt.Sprintf("https://news.test/%d", i),
			"News", "daily", now.Add(-time.Duration(i)*time.Minute),
		)
	}
	require.NoError(t, st.SaveArticles(context.Background(), articles))
	return articles
}

// TestWorker_ProcessJob checks that a queued job scores the stored collection.
func TestWorker_ProcessJob(t *testing.T) {
	st := newStore(t)
	seed(t, st, 2)

	gen := &MockLLM{Reply: `Sure: {"articles":[{"i":0,"s":9,"r":"great","t":"x"},{"i":1,"s":3,"r":"meh","t":"y"}]}`}
	w := NewWorker(st, scorer.New(gen, st, zap.NewNop()), zap.NewNop())

	_, err := st.EnqueueScoring(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.Eventually(t, func() bool {
		scores, err := st.Scores(context.Background())
		return err == nil && len(scores) == 2
	}, 2*time.Second, 20*time.Millisecond)

	// Store order is newest first, which is the prompt order.
	articles, err := st.ListArticles(context.Background(), 0)
	require.NoError(t, err)
	scores, err := st.Scores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, scores[articles[0].ID])
	assert.Equal(t, 3, scores[articles[1].ID])

	got, err := st.GetArticle(context.Background(), articles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "great", got.ScoreReason)
	assert.Equal(t, "x", got.SummaryText)
}

// TestWorker_HandlesLLMFailure checks that a failed run leaves scores empty
// and the worker alive for the next job.
func TestWorker_HandlesLLMFailure(t *testing.T) {
	st := newStore(t)
	seed(t, st, 3)

	gen := &MockLLM{Err: &llm.RateLimitError{StatusCode: 429}}
	w := NewWorker(st, scorer.New(gen, st, zap.NewNop()), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	_, err := st.EnqueueScoring(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gen.Calls() == 1 }, 2*time.Second, 20*time.Millisecond)

	scores, err := st.Scores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scores)

	// Second job, now with a working provider.
	gen.mu.Lock()
	gen.Err = nil
	gen.Reply = `{"articles":[` + strings.Join([]string{
		`{"i":0,"s":5,"r":"a","t":"a"}`,
		`{"i":1,"s":6,"r":"b","t":"b"}`,
		`{"i":2,"s":7,"r":"c","t":"c"}`,
	}, ",") + `]}`
	gen.mu.Unlock()

	_, err = st.EnqueueScoring(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		scores, err := st.Scores(context.Background())
		return err == nil && len(scores) == 3
	}, 2*time.Second, 20*time.Millisecond)
}

type countingRunner struct {
	mu   sync.Mutex
	runs int
	seen int
}

func (r *countingRunner) Run(_ context.Context, articles []model.Article, _ model.ScoreMap) scorer.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.seen = len(articles)
	return scorer.Report{}
}

func (r *countingRunner) snapshot() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.seen
}

func TestWorker_RunsOncePerJob(t *testing.T) {
	st := newStore(t)
	seed(t, st, 4)
	runner := &countingRunner{}
	w := NewWorker(st, runner, zap.NewNop())

	for range 2 {
		_, err := st.EnqueueScoring(context.Background())
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.Eventually(t, func() bool {
		runs, _ := runner.snapshot()
		return runs == 2
	}, 2*time.Second, 20*time.Millisecond)
	_, seen := runner.snapshot()
	assert.Equal(t, 4, seen)
}

// Package scorer assigns relevance scores to unscored articles in batches.
package scorer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"weft/internal/llm"
	"weft/internal/model"
)

const (
	BatchSize = 40

	scoreModel       = llm.ModelInstant
	scoreMaxTokens   = 3000
	scoreTemperature = 0.3
)

// Store is the persistence the scorer needs between batches.
type Store interface {
	ApplyScoring(ctx context.Context, scores model.ScoreMap, notes map[string]model.ScoreNote) error
	ReadRecords(ctx context.Context) ([]model.ReadRecord, error)
}

// Report describes one scoring run. Err is set when a batch failed and
// the remaining batches were skipped.
type Report struct {
	Unscored    int
	Batches     int
	BatchesDone int
	Scored      int
	Interrupted bool
	Err         error
	Took        time.Duration
}

type Scorer struct {
	llm       llm.Generator
	store     Store
	logger    *zap.Logger
	interests string
	batchSize int
}

type Option func(*Scorer)

// WithInterests sets the reader interests statement used in prompts.
func WithInterests(interests string) Option {
	return func(s *Scorer) { s.interests = interests }
}

// WithBatchSize overrides the number of articles per LLM call.
func WithBatchSize(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func New(gen llm.Generator, st Store, logger *zap.Logger, opts ...Option) *Scorer {
	s := &Scorer{
		llm:       gen,
		store:     st,
		logger:    logger,
		interests: DefaultInterests,
		batchSize: BatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unscored returns copies of the articles that have no score yet, in input order.
func Unscored(articles []model.Article, scores model.ScoreMap) []model.Article {
	var out []model.Article
	for _, a := range articles {
		if _, ok := scores[a.ID]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Partition splits articles into consecutive batches of at most size.
func Partition(articles []model.Article, size int) [][]model.Article {
	if size <= 0 {
		size = BatchSize
	}
	var batches [][]model.Article
	for i := 0; i < len(articles); i += size {
		end := min(i+size, len(articles))
		batches = append(batches, articles[i:end])
	}
	return batches
}

// Run scores every unscored article. Batches run one at a time; scores is
// updated in place and persisted after each batch. A failed batch stops
// the run but keeps whatever earlier batches applied. Cancelling ctx stops
// the run between batches, never in the middle of one.
func (s *Scorer) Run(ctx context.Context, articles []model.Article, scores model.ScoreMap) Report {
	start := time.Now()
	unscored := Unscored(articles, scores)
	batches := Partition(unscored, s.batchSize)

	report := Report{
		Unscored: len(unscored),
		Batches:  len(batches),
	}
	if len(batches) == 0 {
		return report
	}

	s.logger.Info("Scoring articles",
		zap.Int("unscored", len(unscored)),
		zap.Int("batches", len(batches)),
	)

	for i, batch := range batches {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		eng := s.engagement(ctx)
		ids, err := s.scoreBatch(context.WithoutCancel(ctx), batch, eng, scores)
		if err != nil {
			s.logger.Warn("Batch scoring failed, skipping remaining batches",
				zap.Int("batch", i),
				zap.Int("remaining", len(batches)-i-1),
				zap.Error(err),
			)
			report.Err = fmt.Errorf("batch %d: %w", i, err)
			break
		}

		report.BatchesDone++
		report.Scored += len(ids)
	}

	report.Took = time.Since(start)
	s.logger.Info("Scoring finished",
		zap.Int("scored", report.Scored),
		zap.Int("batches_done", report.BatchesDone),
		zap.Duration("took", report.Took),
	)
	return report
}

func (s *Scorer) engagement(ctx context.Context) Engagement {
	records, err := s.store.ReadRecords(ctx)
	if err != nil {
		s.logger.Warn("Could not load read history, scoring without personalization", zap.Error(err))
		return Engagement{}
	}
	return EngagementFrom(records)
}

func (s *Scorer) scoreBatch(ctx context.Context, batch []model.Article, eng Engagement, scores model.ScoreMap) ([]string, error) {
	prompt := BuildPrompt(batch, s.interests, eng)

	text, err := s.llm.Generate(ctx, prompt, llm.Options{
		Model:       scoreModel,
		MaxTokens:   scoreMaxTokens,
		Temperature: llm.Temperature(scoreTemperature),
	})
	if err != nil {
		return nil, err
	}

	res, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}

	ids := Apply(batch, res, scores)

	// Only scorer-owned fields are persisted; the batch is a snapshot and
	// its reader flags may be stale by now.
	updated := make(model.ScoreMap, len(ids))
	notes := make(map[string]model.ScoreNote, len(ids))
	byID := make(map[string]*model.Article, len(batch))
	for i := range batch {
		byID[batch[i].ID] = &batch[i]
	}
	for _, id := range ids {
		a := byID[id]
		updated[id] = scores[id]
		notes[id] = model.ScoreNote{Reason: a.ScoreReason, Summary: a.SummaryText}
	}
	if err := s.store.ApplyScoring(ctx, updated, notes); err != nil {
		return nil, fmt.Errorf("persist scores: %w", err)
	}

	s.logger.Debug("Batch scored", zap.Int("size", len(batch)), zap.Int("applied", len(ids)))
	return ids, nil
}

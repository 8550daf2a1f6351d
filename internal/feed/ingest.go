package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weft/internal/config"
	"weft/internal/model"
)

// Repository is the slice of the store that ingestion writes to.
type Repository interface {
	ListArticles(ctx context.Context, limit int) ([]model.Article, error)
	SaveArticles(ctx context.Context, articles []model.Article) error
	EnqueueScoring(ctx context.Context) (uuid.UUID, error)
}

type IngestReport struct {
	Fetched int
	Failed  int
	JobID   uuid.UUID
}

// Ingester fetches all sources, merges the result into the stored
// collection and queues a scoring job.
type Ingester struct {
	fetcher Fetcher
	repo    Repository
	sources []config.Source
	logger  *zap.Logger
}

func NewIngester(fetcher Fetcher, repo Repository, sources []config.Source, logger *zap.Logger) *Ingester {
	return &Ingester{fetcher: fetcher, repo: repo, sources: sources, logger: logger}
}

func (i *Ingester) Refresh(ctx context.Context) (IngestReport, error) {
	res := FetchAll(ctx, i.fetcher, i.sources, i.logger)
	report := IngestReport{Fetched: len(res.Articles), Failed: len(res.Errors)}

	if len(res.Articles) == 0 {
		i.logger.Warn("No articles fetched", zap.Int("failed_sources", report.Failed))
		return report, nil
	}

	existing, err := i.repo.ListArticles(ctx, 0)
	if err != nil {
		return report, fmt.Errorf("load existing articles: %w", err)
	}
	if err := i.repo.SaveArticles(ctx, model.MergeFetched(existing, res.Articles)); err != nil {
		return report, fmt.Errorf("save articles: %w", err)
	}

	report.JobID, err = i.repo.EnqueueScoring(ctx)
	if err != nil {
		return report, fmt.Errorf("queue scoring: %w", err)
	}

	i.logger.Info("Feeds refreshed",
		zap.Int("fetched", report.Fetched),
		zap.Int("failed_sources", report.Failed),
		zap.String("job_id", report.JobID.String()),
	)
	return report, nil
}

package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weft/internal/model"
	"weft/internal/scorer"
	"weft/internal/store"
)

// Runner scores whatever in the collection is still unscored.
type Runner interface {
	Run(ctx context.Context, articles []model.Article, scores model.ScoreMap) scorer.Report
}

// Worker drains the scoring queue. Each job rescans the stored collection,
// so jobs queued while another one runs collapse into cheap no-ops.
type Worker struct {
	store  store.Store
	runner Runner
	logger *zap.Logger
}

func NewWorker(store store.Store, runner Runner, logger *zap.Logger) *Worker {
	return &Worker{
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// Start runs the worker loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		// Wait for job (Blocking call to Redis)
		id, err := w.store.PopScoringJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id uuid.UUID) {
	logger := w.logger.With(zap.String("job_id", id.String()))
	logger.Info("Processing started")

	articles, err := w.store.ListArticles(ctx, 0)
	if err != nil {
		logger.Error("Job failed: could not list articles", zap.Error(err))
		return
	}
	scores, err := w.store.Scores(ctx)
	if err != nil {
		logger.Error("Job failed: could not load scores", zap.Error(err))
		return
	}

	report := w.runner.Run(ctx, articles, scores)
	fields := []zap.Field{
		zap.Int("unscored", report.Unscored),
		zap.Int("scored", report.Scored),
		zap.Int("batches_done", report.BatchesDone),
		zap.Int("batches", report.Batches),
		zap.Duration("took", report.Took),
	}
	switch {
	case report.Err != nil:
		logger.Warn("Scoring stopped early", append(fields, zap.Error(report.Err))...)
	case report.Interrupted:
		logger.Info("Scoring interrupted", fields...)
	default:
		logger.Info("Scoring complete", fields...)
	}
}

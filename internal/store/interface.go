package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"weft/internal/model"
)

var (
	ErrNotFound = errors.New("article not found")
)

// MaxArticles bounds the recent-article index.
const MaxArticles = 500

type Store interface {
	SaveArticles(ctx context.Context, articles []model.Article) error
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	ListArticles(ctx context.Context, limit int) ([]model.Article, error)
	UpdateArticle(ctx context.Context, id string, fn func(*model.Article)) (*model.Article, error)

	Scores(ctx context.Context) (model.ScoreMap, error)
	SetScores(ctx context.Context, scores model.ScoreMap) error
	ApplyScoring(ctx context.Context, scores model.ScoreMap, notes map[string]model.ScoreNote) error

	RecordRead(ctx context.Context, rec model.ReadRecord) error
	ReadRecords(ctx context.Context) ([]model.ReadRecord, error)

	Briefing(ctx context.Context, day string) (string, bool, error)
	SaveBriefing(ctx context.Context, day, text string) error

	EnqueueScoring(ctx context.Context) (uuid.UUID, error)
	PopScoringJob(ctx context.Context) (uuid.UUID, error)

	Close() error
}

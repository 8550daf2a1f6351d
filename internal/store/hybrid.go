package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"weft/internal/model"
)

const (
	keyIndex  = "index:articles"
	keyScores = "scores"
	keyReads  = "reads"
	keyQueue  = "queue:score"

	// Metadata outlives the index window, then Redis reclaims it.
	articleTTL = 7 * 24 * time.Hour

	maxTxRetries = 5

	// A briefing is asked for during its own day; keep it a little longer.
	briefingTTL = 48 * time.Hour
)

func articleKey(id string) string { return "article:" + id }
func contentKey(id string) string { return "content:" + id }
func briefingKey(day string) string { return "briefing:" + day }

// HybridStore keeps article metadata, scores, read history and the scoring
// queue in Redis, and heavy per-article content in Badger.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore connects to both backends.
// Pass badgerPath="" to run in Redis-only mode (for CLI tools).
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

func (s *HybridStore) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// SaveArticles writes metadata to Redis and indexes each article by
// publish time, keeping only the newest MaxArticles in the index. Heavy
// fields go to Badger; empty heavy fields leave stored content alone.
func (s *HybridStore) SaveArticles(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, a := range articles {
		if err := queueMetadata(ctx, pipe, a); err != nil {
			return err
		}
	}
	pipe.ZRemRangeByRank(ctx, keyIndex, 0, -(MaxArticles + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	for i := range articles {
		if !articles[i].HasHeavyFields() {
			continue
		}
		if err := s.saveContent(&articles[i]); err != nil {
			return err
		}
	}
	return nil
}

// queueMetadata adds the Redis half of a to pipe.
func queueMetadata(ctx context.Context, pipe redis.Pipeliner, a model.Article) error {
	a.Content = ""
	a.Summary = ""
	a.SummaryStyle = ""

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	pipe.Set(ctx, articleKey(a.ID), data, articleTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{Score: float64(a.PublishedAt.Unix()), Member: a.ID})
	return nil
}

func (s *HybridStore) saveContent(a *model.Article) error {
	if s.db == nil {
		return fmt.Errorf("cannot save content: badgerdb is not initialized")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var doc contentDoc
		item, err := txn.Get([]byte(contentKey(a.ID)))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error { return decodeContent(val, &doc) }); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if a.Content != "" {
			doc.Content = a.Content
		}
		if a.Summary != "" {
			doc.Summary = a.Summary
			doc.SummaryStyle = a.SummaryStyle
		}

		data, err := encodeContent(doc)
		if err != nil {
			return err
		}
		return txn.Set([]byte(contentKey(a.ID)), data)
	})
}

// GetArticle combines metadata from Redis with content from Badger when
// Badger is configured.
func (s *HybridStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	return s.loadArticle(ctx, s.rdb, id)
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *HybridStore) loadArticle(ctx context.Context, rdb getter, id string) (*model.Article, error) {
	val, err := rdb.Get(ctx, articleKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article model.Article
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, err
	}

	if s.db != nil {
		err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(contentKey(id)))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				var doc contentDoc
				if err := decodeContent(val, &doc); err != nil {
					return err
				}
				article.Content = doc.Content
				article.Summary = doc.Summary
				article.SummaryStyle = doc.SummaryStyle
				return nil
			})
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return nil, err
		}
	}

	return &article, nil
}

// ListArticles returns up to limit articles, newest first. Heavy fields are
// not loaded.
func (s *HybridStore) ListArticles(ctx context.Context, limit int) ([]model.Article, error) {
	if limit <= 0 || limit > MaxArticles {
		limit = MaxArticles
	}

	ids, err := s.rdb.ZRevRange(ctx, keyIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = articleKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a model.Article
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// UpdateArticle applies fn to the stored article inside a WATCH
// transaction, retrying when another writer changed the metadata first.
// fn may run more than once. Heavy fields are written only when fn
// changed them.
func (s *HybridStore) UpdateArticle(ctx context.Context, id string, fn func(*model.Article)) (*model.Article, error) {
	var (
		updated *model.Article
		heavy   bool
	)
	err := s.watch(ctx, articleKey(id), func(tx *redis.Tx) error {
		a, err := s.loadArticle(ctx, tx, id)
		if err != nil {
			return err
		}
		before := *a
		fn(a)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return queueMetadata(ctx, pipe, *a)
		})
		if err != nil {
			return err
		}
		updated = a
		heavy = a.Content != before.Content || a.Summary != before.Summary || a.SummaryStyle != before.SummaryStyle
		return nil
	})
	if err != nil {
		return nil, err
	}

	if heavy && updated.HasHeavyFields() {
		if err := s.saveContent(updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// ApplyScoring records scores and the scorer's notes. Each article's
// metadata is rewritten in its own WATCH transaction so reader flags
// changed during a scoring run survive. Scores for articles whose
// metadata has expired are still recorded.
func (s *HybridStore) ApplyScoring(ctx context.Context, scores model.ScoreMap, notes map[string]model.ScoreNote) error {
	for id, note := range notes {
		key := articleKey(id)
		err := s.watch(ctx, key, func(tx *redis.Tx) error {
			val, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return nil
			} else if err != nil {
				return err
			}
			var a model.Article
			if err := json.Unmarshal(val, &a); err != nil {
				return err
			}
			a.ScoreReason = note.Reason
			a.SummaryText = note.Summary
			data, err := json.Marshal(a)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, redis.KeepTTL)
				return nil
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("article %s: %w", id, err)
		}
	}
	return s.SetScores(ctx, scores)
}

// watch runs fn under WATCH key, retrying a bounded number of times when
// the transaction loses a race.
func (s *HybridStore) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	var err error
	for range maxTxRetries {
		err = s.rdb.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *HybridStore) Scores(ctx context.Context) (model.ScoreMap, error) {
	raw, err := s.rdb.HGetAll(ctx, keyScores).Result()
	if err != nil {
		return nil, err
	}
	scores := make(model.ScoreMap, len(raw))
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		scores[id] = n
	}
	return scores, nil
}

// SetScores writes the given entries, overwriting earlier scores for the
// same articles.
func (s *HybridStore) SetScores(ctx context.Context, scores model.ScoreMap) error {
	if len(scores) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(scores))
	for id, v := range scores {
		values[id] = v
	}
	return s.rdb.HSet(ctx, keyScores, values).Err()
}

// RecordRead stores the latest reading session for an article.
func (s *HybridStore) RecordRead(ctx context.Context, rec model.ReadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, keyReads, rec.ArticleID, data).Err()
}

// ReadRecords returns every recorded session, oldest first.
func (s *HybridStore) ReadRecords(ctx context.Context) ([]model.ReadRecord, error) {
	raw, err := s.rdb.HGetAll(ctx, keyReads).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.ReadRecord, 0, len(raw))
	for _, v := range raw {
		var r model.ReadRecord
		if err := json.Unmarshal([]byte(v), &r); err == nil {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].At.Equal(records[j].At) {
			return records[i].At.Before(records[j].At)
		}
		return records[i].ArticleID < records[j].ArticleID
	})
	return records, nil
}

// Briefing returns the briefing cached for day (YYYY-MM-DD).
func (s *HybridStore) Briefing(ctx context.Context, day string) (string, bool, error) {
	text, err := s.rdb.Get(ctx, briefingKey(day)).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (s *HybridStore) SaveBriefing(ctx context.Context, day, text string) error {
	return s.rdb.Set(ctx, briefingKey(day), text, briefingTTL).Err()
}

// EnqueueScoring pushes a new scoring job and returns its ID.
func (s *HybridStore) EnqueueScoring(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.rdb.LPush(ctx, keyQueue, id.String()).Err(); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// PopScoringJob waits for a job in the Redis queue (Blocking)
func (s *HybridStore) PopScoringJob(ctx context.Context) (uuid.UUID, error) {
	// 0 means wait forever until an item arrives
	result, err := s.rdb.BRPop(ctx, 0, keyQueue).Result()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(result[1])
}

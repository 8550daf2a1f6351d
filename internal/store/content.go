package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// GCDiscardRatio is the share of stale data a value log file needs before
// Badger rewrites it.
const GCDiscardRatio = 0.7

// contentDoc is the Badger-side half of an article.
type contentDoc struct {
	Content      string `json:"content,omitempty"`
	Summary      string `json:"summary,omitempty"`
	SummaryStyle string `json:"summary_style,omitempty"`
}

// encodeContent stores documents as gzipped JSON; page text compresses well.
func encodeContent(doc contentDoc) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeContent(val []byte, doc *contentDoc) error {
	zr, err := gzip.NewReader(bytes.NewReader(val))
	if err != nil {
		return err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, doc)
}

// RunGC reclaims Badger value log space every interval until ctx is done.
// It returns immediately in Redis-only mode.
func (s *HybridStore) RunGC(ctx context.Context, every time.Duration, logger *zap.Logger) {
	if s.db == nil {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.collectGarbage(); err != nil {
				logger.Warn("Badger value log GC failed", zap.Error(err))
			}
		}
	}
}

// collectGarbage rewrites value log files until none qualifies.
func (s *HybridStore) collectGarbage() error {
	for {
		err := s.db.RunValueLogGC(GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

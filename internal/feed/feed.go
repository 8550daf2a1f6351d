package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"weft/internal/config"
	"weft/internal/logger"
	"weft/internal/model"
)

const (
	MaxItemsPerFeed  = 8
	DescriptionLimit = 300
)

type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]model.Article, error)
}

type RSSFetcher struct {
	client    *retryablehttp.Client
	parser    *gofeed.Parser
	userAgent string
	now       func() time.Time
}

// NewRSSFetcher builds a fetcher that retries transient failures twice.
func NewRSSFetcher(userAgent string, timeout time.Duration, log *zap.Logger) *RSSFetcher {
	r := retryablehttp.NewClient()
	r.RetryMax = 2
	r.HTTPClient.Timeout = timeout
	r.Logger = logger.Retryable(log)
	return &RSSFetcher{
		client:    r,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
		now:       time.Now,
	}
}

func (f *RSSFetcher) Fetch(ctx context.Context, source config.Source) ([]model.Article, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", source.Name, resp.StatusCode)
	}
	return f.Parse(resp.Body, source)
}

// Parse turns an RSS or Atom document into articles. Only the first
// MaxItemsPerFeed entries are considered; entries missing a title or link
// are dropped.
func (f *RSSFetcher) Parse(r io.Reader, source config.Source) ([]model.Article, error) {
	feed, err := f.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source.Name, err)
	}

	now := f.now()
	articles := make([]model.Article, 0, min(len(feed.Items), MaxItemsPerFeed))
	for i, item := range feed.Items {
		if i >= MaxItemsPerFeed {
			break
		}

		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		if item.Title == "" || link == "" {
			continue
		}

		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		a := model.NewArticle(CleanHTML(item.Title), link, source.Name, source.Category, pub)
		a.Description = truncate(CleanHTML(desc), DescriptionLimit)
		articles = append(articles, a)
	}
	return articles, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

type FetchResult struct {
	Articles []model.Article
	Errors   []error
}

// FetchAll fetches every source concurrently. A failing source is logged
// and contributes no articles. The result is newest first.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []config.Source, log *zap.Logger) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
		wg     sync.WaitGroup
	)

	for _, src := range sources {
		wg.Add(1)
		go func(s config.Source) {
			defer wg.Done()
			articles, err := fetcher.Fetch(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("Feed fetch failed", zap.String("source", s.Name), zap.Error(err))
				result.Errors = append(result.Errors, err)
				return
			}
			result.Articles = append(result.Articles, articles...)
		}(src)
	}
	wg.Wait()

	result.Articles = dedupe(result.Articles)
	sort.SliceStable(result.Articles, func(i, j int) bool {
		a, b := result.Articles[i], result.Articles[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	return result
}

func dedupe(articles []model.Article) []model.Article {
	seen := make(map[string]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

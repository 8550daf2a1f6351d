package model

import (
	"strconv"
	"time"
	"unicode/utf16"
)

// Article represents a single feed item as seen by readers and the scorer.
// Scores live in a ScoreMap, not on the article.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"date"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`

	// Filled by the batch scorer.
	ScoreReason string `json:"scoreReason,omitempty"`
	SummaryText string `json:"groqSummary,omitempty"`

	// Heavy fields, persisted outside the metadata store.
	Summary      string `json:"summary,omitempty"`
	SummaryStyle string `json:"summaryStyle,omitempty"`
	Content      string `json:"content,omitempty"`

	Liked      bool `json:"liked"`
	Disliked   bool `json:"disliked"`
	Bookmarked bool `json:"bookmarked"`
	Read       bool `json:"read"`
}

// NewArticle builds an article with a stable ID and title keywords.
func NewArticle(title, link, source, category string, published time.Time) Article {
	return Article{
		ID:          ArticleID(link, source),
		Title:       title,
		Link:        link,
		PublishedAt: published,
		Source:      source,
		Category:    category,
		Keywords:    ExtractKeywords(title),
	}
}

// ArticleID derives the identity of a feed item from its link and source.
// The hash walks UTF-16 code units with 32-bit wraparound so IDs match the
// ones browser clients already hold in local storage.
func ArticleID(link, source string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(link + source)) {
		h = (h << 5) - h + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return "art_" + strconv.FormatInt(abs, 36)
}

// HasHeavyFields reports whether the article carries data that belongs in
// the content store.
func (a *Article) HasHeavyFields() bool {
	return a.Summary != "" || a.Content != ""
}

// MergeFetched combines a fresh feed fetch with the stored collection.
// Reader state and scorer output survive a re-fetch of the same item.
func MergeFetched(existing, fresh []Article) []Article {
	known := make(map[string]Article, len(existing))
	for _, a := range existing {
		known[a.ID] = a
	}

	out := make([]Article, 0, len(fresh))
	for _, a := range fresh {
		if old, ok := known[a.ID]; ok {
			a.ScoreReason = old.ScoreReason
			a.SummaryText = old.SummaryText
			a.Liked = old.Liked
			a.Disliked = old.Disliked
			a.Bookmarked = old.Bookmarked
			a.Read = old.Read
		}
		out = append(out, a)
	}
	return out
}

package model

import "time"

// MinReadSeconds is the shortest reading session worth recording.
const MinReadSeconds = 5

// ReadRecord captures how long a reader stayed on an article.
type ReadRecord struct {
	ArticleID string    `json:"articleId"`
	Seconds   int       `json:"seconds"`
	Source    string    `json:"source"`
	Keywords  []string  `json:"keywords"`
	At        time.Time `json:"ts"`
}

// NewReadRecord returns a record for the article, or false when the session
// was too short to count.
func NewReadRecord(a Article, seconds int, at time.Time) (ReadRecord, bool) {
	if seconds < MinReadSeconds {
		return ReadRecord{}, false
	}
	return ReadRecord{
		ArticleID: a.ID,
		Seconds:   seconds,
		Source:    a.Source,
		Keywords:  append([]string(nil), a.Keywords...),
		At:        at,
	}, true
}

// ScoreMap maps article IDs to relevance scores (1-10).
// A missing entry means the article has not been scored yet.
type ScoreMap map[string]int

// Get returns the score for id.
func (m ScoreMap) Get(id string) (int, bool) {
	s, ok := m[id]
	return s, ok
}

// ScoreNote is the scorer's text output for one article. It is all the
// scorer writes to an article; reader flags are never touched.
type ScoreNote struct {
	Reason  string
	Summary string
}

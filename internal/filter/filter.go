// Package filter turns articles and scores into ranked reader views.
package filter

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"weft/internal/model"
)

type Mode string

const (
	ModeSmart      Mode = "smart"
	ModeTop        Mode = "top"
	ModeUnread     Mode = "unread"
	ModeBookmarked Mode = "bookmarked"
	ModeDiscover   Mode = "discover"
)

const (
	DefaultThreshold = 6
	TopThreshold     = 8

	discoverMinScore        = 3
	discoverMaxScore        = 7
	discoverLimit           = 15
	discoverExcludedSources = 5
)

// Modes lists every supported view.
var Modes = []Mode{ModeSmart, ModeTop, ModeUnread, ModeBookmarked, ModeDiscover}

// ParseMode maps a name to a Mode, falling back to smart.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m
		}
	}
	return ModeSmart
}

type Options struct {
	Mode      Mode
	Threshold int
	Search    string

	// Rand shuffles the discover view. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// Apply returns the articles visible in the requested view, in display
// order. The input slice is left untouched.
func Apply(articles []model.Article, scores model.ScoreMap, opts Options) []model.Article {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var out []model.Article
	switch ParseMode(string(opts.Mode)) {
	case ModeTop:
		out = keep(articles, func(a model.Article) bool {
			s, ok := scores[a.ID]
			return ok && s >= TopThreshold
		})
		sort.SliceStable(out, func(i, j int) bool {
			return scores[out[i].ID] > scores[out[j].ID]
		})
	case ModeUnread:
		out = keep(articles, func(a model.Article) bool { return !a.Read })
	case ModeBookmarked:
		out = keep(articles, func(a model.Article) bool { return a.Bookmarked })
	case ModeDiscover:
		out = discover(articles, scores, opts.Rand)
	default:
		out = keep(articles, func(a model.Article) bool {
			s, ok := scores[a.ID]
			return !ok || s >= threshold
		})
		sort.SliceStable(out, func(i, j int) bool {
			return smartLess(out[i], out[j], scores)
		})
	}

	if q := strings.TrimSpace(opts.Search); q != "" {
		out = search(out, q)
	}
	return out
}

// smartLess orders scored articles by score, then puts scored before
// unscored, then falls back to newest first.
func smartLess(a, b model.Article, scores model.ScoreMap) bool {
	sa, okA := scores[a.ID]
	sb, okB := scores[b.ID]
	switch {
	case okA && okB && sa != sb:
		return sa > sb
	case okA && !okB:
		return true
	case okB && !okA:
		return false
	}
	return a.PublishedAt.After(b.PublishedAt)
}

func discover(articles []model.Article, scores model.ScoreMap, rng *rand.Rand) []model.Article {
	excluded := make(map[string]struct{}, discoverExcludedSources)
	for _, s := range TopReadSources(articles, discoverExcludedSources) {
		excluded[s] = struct{}{}
	}

	out := keep(articles, func(a model.Article) bool {
		s, ok := scores[a.ID]
		if !ok || s < discoverMinScore || s > discoverMaxScore {
			return false
		}
		_, skip := excluded[a.Source]
		return !skip
	})

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	if len(out) > discoverLimit {
		out = out[:discoverLimit]
	}
	return out
}

// TopReadSources returns up to n sources ranked by how many of their
// articles have been read. Ties keep first-seen order.
func TopReadSources(articles []model.Article, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, a := range articles {
		if !a.Read {
			continue
		}
		if _, ok := counts[a.Source]; !ok {
			order = append(order, a.Source)
		}
		counts[a.Source]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func search(articles []model.Article, query string) []model.Article {
	fold := cases.Fold()
	q := fold.String(query)
	return keep(articles, func(a model.Article) bool {
		return strings.Contains(fold.String(a.Title), q) ||
			strings.Contains(fold.String(a.Description), q) ||
			strings.Contains(fold.String(a.Source), q)
	})
}

func keep(articles []model.Article, pred func(model.Article) bool) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

package scorer

import (
	"fmt"
	"sort"
	"strings"

	"weft/internal/model"
)

const (
	DefaultInterests = "AI, machine learning, LLMs, generative AI, tech industry"

	// Engagement is only derived once there is enough read history, and
	// only from sessions long enough to signal real interest.
	MinReadRecords = 5
	EngagedSeconds = 30

	maxTopSources  = 3
	maxTopKeywords = 5
)

// Engagement summarizes what the reader tends to spend time on.
type Engagement struct {
	TopSources  []string
	TopKeywords []string
}

// Empty reports whether the signal carries no personalization.
func (e Engagement) Empty() bool {
	return len(e.TopSources) == 0
}

// EngagementFrom derives the signal from read history. Ties keep the order
// in which sources and keywords were first seen.
func EngagementFrom(records []model.ReadRecord) Engagement {
	if len(records) < MinReadRecords {
		return Engagement{}
	}

	sources := newCounter()
	keywords := newCounter()
	for _, r := range records {
		if r.Seconds < EngagedSeconds {
			continue
		}
		sources.add(r.Source)
		for _, k := range r.Keywords {
			keywords.add(k)
		}
	}

	top := sources.top(maxTopSources)
	if len(top) == 0 {
		return Engagement{}
	}
	return Engagement{TopSources: top, TopKeywords: keywords.top(maxTopKeywords)}
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(k string) {
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

func (c *counter) top(n int) []string {
	keys := append([]string(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

const promptTemplate = `You are a news relevance filter. Score these articles 1-10 for someone interested in: %s%s

%s

Return JSON: %s
- i: index, s: score (1=irrelevant, 10=must read), r: one-sentence reason for the score, t: one-sentence TL;DR%s
Respond with ONLY valid JSON.`

const (
	plainShape    = `{"articles":[{"i":0,"s":7,"r":"reason for score","t":"one sentence summary"},...]}`
	boostedShape  = `{"articles":[{"i":0,"s":7,"b":6,"r":"reason for score","t":"one sentence summary"},...]}`
	boostedLegend = `, b: score before the reading-pattern boost`
)

// BuildPrompt renders the scoring prompt for one batch. Items are indexed
// by their position in the batch.
func BuildPrompt(batch []model.Article, interests string, eng Engagement) string {
	if strings.TrimSpace(interests) == "" {
		interests = DefaultInterests
	}

	lines := make([]string, len(batch))
	for i, a := range batch {
		lines[i] = fmt.Sprintf("[%d] %s (%s)", i, a.Title, a.Source)
	}

	pref, shape, legend := "", plainShape, ""
	if !eng.Empty() {
		pref = fmt.Sprintf("\nUser reading patterns: prefers %s. Frequent topics: %s. Boost these slightly (max +1).",
			strings.Join(eng.TopSources, ", "), strings.Join(eng.TopKeywords, ", "))
		shape, legend = boostedShape, boostedLegend
	}

	return fmt.Sprintf(promptTemplate, interests, pref, strings.Join(lines, "\n"), shape, legend)
}

package scorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"weft/internal/model"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Item is one scored entry in a model reply.
type Item struct {
	Index  int      `json:"i"`
	Score  float64  `json:"s"`
	Base   *float64 `json:"b,omitempty"`
	Reason string   `json:"r"`
	TLDR   string   `json:"t"`
}

// BatchResult is the decoded model reply for a batch.
type BatchResult struct {
	Articles []Item `json:"articles"`
}

// MalformedResponseError means the model reply held no usable JSON.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed scoring response: %s: %v", e.Reason, e.Err)
	}
	return "malformed scoring response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

var (
	errNoObject  = errors.New("no JSON object")
	errTruncated = errors.New("unterminated JSON object")
)

// ExtractJSONObject returns the first balanced top-level {...} in text.
// Braces inside string literals are ignored. Prose before or after the
// object is skipped.
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start, depth = i, 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	if start < 0 {
		return "", errNoObject
	}
	return "", errTruncated
}

// ParseResponse extracts and decodes a batch reply.
func ParseResponse(text string) (*BatchResult, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, &MalformedResponseError{Reason: "extract", Err: err}
	}

	var envelope struct {
		Articles *json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, &MalformedResponseError{Reason: "decode", Err: err}
	}
	if envelope.Articles == nil {
		return nil, &MalformedResponseError{Reason: "missing articles array"}
	}

	var res BatchResult
	if err := json.Unmarshal(*envelope.Articles, &res.Articles); err != nil {
		return nil, &MalformedResponseError{Reason: "decode articles", Err: err}
	}
	return &res, nil
}

// Apply writes the result onto the batch and the score map. Items whose
// index falls outside the batch are ignored. It returns the IDs that
// received a score.
func Apply(batch []model.Article, res *BatchResult, scores model.ScoreMap) []string {
	var applied []string
	for _, it := range res.Articles {
		if it.Index < 0 || it.Index >= len(batch) {
			continue
		}
		a := &batch[it.Index]
		scores[a.ID] = finalScore(it)
		a.ScoreReason = it.Reason
		a.SummaryText = it.TLDR
		applied = append(applied, a.ID)
	}
	return applied
}

// finalScore clamps the score and caps any reading-pattern boost at +1
// over the base score when the model reported one.
func finalScore(it Item) int {
	s := clamp(it.Score)
	if it.Base != nil {
		s = min(s, clamp(*it.Base)+1)
	}
	return s
}

func clamp(v float64) int {
	if math.IsNaN(v) {
		return MinScore
	}
	return int(max(MinScore, min(MaxScore, math.Round(v))))
}

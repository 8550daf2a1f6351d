package model

import (
	"strings"
	"unicode"
)

const maxTitleKeywords = 4

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {}, "it": {}, "its": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "and": {}, "or": {}, "but": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "be": {}, "this": {}, "that": {}, "how": {},
	"what": {}, "why": {}, "when": {}, "where": {}, "who": {}, "new": {}, "first": {}, "just": {},
	"now": {}, "get": {}, "can": {}, "will": {}, "one": {}, "all": {}, "has": {}, "have": {},
	"been": {}, "more": {}, "your": {}, "out": {}, "up": {}, "about": {},
}

// ExtractKeywords returns the first few significant words of a title,
// lowercased and stripped of punctuation.
func ExtractKeywords(title string) []string {
	var keywords []string
	for _, token := range strings.Fields(title) {
		word := strings.ToLower(strings.Map(func(r rune) rune {
			if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, token))

		if len([]rune(word)) <= 2 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == maxTitleKeywords {
			break
		}
	}
	return keywords
}

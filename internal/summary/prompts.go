package summary

import (
	"sort"
	"strings"

	"weft/internal/model"
)

const DefaultStyle = "newsletter"

var presets = map[string]string{
	"newsletter": `You are an AI news analyst writing for a tech-savvy audience. Summarize this article clearly and insightfully.

Structure your response EXACTLY like this:
WHAT: [One sentence describing what happened]
WHY IT MATTERS: [One sentence on significance]
KEY INSIGHT: [One sentence takeaway]

Title: {{title}}
Content: {{content}}`,

	"tldr": `Write an ultra-concise TL;DR in exactly 1-2 sentences. Cut to the core. No fluff.

Title: {{title}}
Content: {{content}}

TL;DR:`,

	"bullets": `Summarize in exactly 3 bullet points:
• Main news/announcement
• Technical or business detail
• Implication or what's next

Title: {{title}}
Content: {{content}}`,

	"executive": `Write a 4-sentence executive brief following this structure:
1. Context (background)
2. News (what happened)
3. Analysis (why it matters)
4. Outlook (what's next)

Title: {{title}}
Content: {{content}}`,
}

// Styles returns the names of the built-in summary styles.
func Styles() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NormalizeStyle maps unknown or empty style names to the default.
func NormalizeStyle(style string) string {
	style = strings.ToLower(strings.TrimSpace(style))
	if _, ok := presets[style]; ok {
		return style
	}
	return DefaultStyle
}

// Prompt fills the style template with the article title and content.
func Prompt(style string, a model.Article, content string) string {
	t := presets[NormalizeStyle(style)]
	t = strings.Replace(t, "{{title}}", a.Title, 1)
	return strings.Replace(t, "{{content}}", content, 1)
}

package contextwindow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kindredlabs/recall/internal/memory"
	"github.com/kindredlabs/recall/internal/model"
	"github.com/kindredlabs/recall/internal/tokens"
)

// DefaultSummaryTokens bounds the summary produced when old turns are
// collapsed.
const DefaultSummaryTokens = 200

var topicWordRe = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)

var summaryStopWords = map[string]bool{
	"that": true, "this": true, "with": true, "have": true, "will": true,
	"from": true, "they": true, "been": true, "were": true, "said": true,
	"what": true, "when": true, "where": true, "would": true, "could": true,
	"should": true,
}

// Summarize produces an extractive summary of turns: the dominant
// topics of each side of the exchange, capped at maxTokens. It is
// deterministic for the same input.
func Summarize(turns []model.Turn, counter tokens.Counter, maxTokens int) string {
	if len(turns) == 0 {
		return ""
	}
	if counter == nil {
		counter = tokens.WordCounter{}
	}

	var points []string
	for _, t := range turns {
		if topics := keyTopics(t.UserText, 3); len(topics) > 0 {
			points = append(points, "User discussed: "+strings.Join(topics, ", "))
		}
		if topics := keyTopics(t.AIText, 3); len(topics) > 0 {
			points = append(points, "Assistant covered: "+strings.Join(topics, ", "))
		}
	}
	if len(points) > 5 {
		points = points[:5]
	}

	return truncateToTokens(strings.Join(points, ". "), counter, maxTokens)
}

// keyTopics returns up to n topic words by descending frequency. Ties
// break alphabetically so the output is stable.
func keyTopics(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range topicWordRe.FindAllString(strings.ToLower(text), -1) {
		if !summaryStopWords[w] {
			counts[w]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// truncateToTokens trims text word by word until it fits the budget.
func truncateToTokens(text string, counter tokens.Counter, maxTokens int) string {
	if maxTokens <= 0 || counter.Count(text) <= maxTokens {
		return text
	}
	words := strings.Fields(text)
	for len(words) > 0 && counter.Count(strings.Join(words, " ")) > maxTokens {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// FormatPrompt renders the window for inclusion in a model prompt:
// relevant memories first, then the summary and recent turns.
func FormatPrompt(summary string, turns []model.Turn, memories []memory.Scored) string {
	var parts []string

	if len(memories) > 0 {
		lines := []string{"Relevant Memories:"}
		top := memories
		if len(top) > 3 {
			top = top[:3]
		}
		for _, mem := range top {
			content := mem.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s", titleCase(string(mem.MemoryType)), content))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	var convo []string
	if summary != "" {
		convo = append(convo, "Previous Context: "+summary)
	}
	recent := turns
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, t := range recent {
		if t.UserText != "" {
			convo = append(convo, "User: "+t.UserText)
		}
		if t.AIText != "" {
			convo = append(convo, "Assistant: "+t.AIText)
		}
	}
	if len(convo) > 0 {
		parts = append(parts, strings.Join(convo, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package memory

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kindredlabs/recall/internal/model"
)

// typeIndicators maps each memory type to words whose presence votes for
// that type. Classification counts whole-word matches; the type with the
// most votes wins, ties resolved by classifyOrder.
var typeIndicators = map[model.MemoryType][]string{
	model.MemoryEmotional:      {"feel", "felt", "emotion", "heart", "soul", "love", "hate", "fear", "joy", "sad"},
	model.MemoryFactual:        {"fact", "information", "data", "statistics", "research", "study", "report"},
	model.MemoryConversational: {"said", "told", "asked", "replied", "conversation", "chat", "talk", "discuss"},
	model.MemoryExperiential:   {"experience", "happened", "went", "did", "saw", "heard", "felt", "lived"},
}

// classifyOrder fixes tie-breaking so classification is deterministic.
var classifyOrder = []model.MemoryType{
	model.MemoryEmotional,
	model.MemoryFactual,
	model.MemoryConversational,
	model.MemoryExperiential,
}

// emotionKeywords maps emotion labels to trigger words. Matching is
// substring-based so inflected forms ("loves", "worrying") still hit.
var emotionKeywords = map[string][]string{
	"joy":      {"happy", "joy", "excited", "thrilled", "delighted", "cheerful", "elated"},
	"sadness":  {"sad", "depressed", "melancholy", "grief", "sorrow", "heartbroken"},
	"anger":    {"angry", "furious", "rage", "irritated", "annoyed", "frustrated"},
	"fear":     {"afraid", "scared", "terrified", "anxious", "worried", "nervous"},
	"love":     {"love", "adore", "cherish", "affection", "romance", "passion"},
	"surprise": {"surprised", "amazed", "astonished", "shocked", "stunned"},
}

// Classify derives the memory type from chunk content. It never fails;
// content matching nothing is factual.
func Classify(content string) model.MemoryType {
	lower := strings.ToLower(content)
	words := tokenSet(lower)

	best := model.MemoryType("")
	bestScore := 0
	for _, mt := range classifyOrder {
		score := 0
		for _, w := range typeIndicators[mt] {
			if words[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = mt, score
		}
	}
	if bestScore > 0 {
		return best
	}

	// No indicator hit; fall back to coarser substring cues.
	for _, kws := range emotionKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				return model.MemoryEmotional
			}
		}
	}
	for _, w := range []string{"said", "told", "asked", "replied"} {
		if strings.Contains(lower, w) {
			return model.MemoryConversational
		}
	}
	for _, w := range []string{"went", "did", "saw", "experienced"} {
		if strings.Contains(lower, w) {
			return model.MemoryExperiential
		}
	}
	return model.MemoryFactual
}

// ExtractEmotions returns the emotion labels whose trigger words appear
// in the text, sorted alphabetically.
func ExtractEmotions(content string) []string {
	lower := strings.ToLower(content)

	var found []string
	for emotion, kws := range emotionKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				found = append(found, emotion)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

func tokenSet(lower string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		set[w] = true
	}
	return set
}

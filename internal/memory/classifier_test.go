package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kindredlabs/recall/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    model.MemoryType
	}{
		{"emotional", "I felt so much love and joy in my heart today", model.MemoryEmotional},
		{"factual", "The research report includes statistics and data from the study", model.MemoryFactual},
		{"conversational", "She said hello and asked how the chat went, then replied warmly", model.MemoryConversational},
		{"experiential", "We went hiking, saw the waterfall, and lived a full day outdoors", model.MemoryExperiential},
		{"default factual", "Blue whale migration routes span thousands of kilometers", model.MemoryFactual},
		{"emotion fallback", "Everything was wonderful and I was thrilled beyond words", model.MemoryEmotional},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.content))
		})
	}
}

func TestClassify_TieBreakIsStable(t *testing.T) {
	// One emotional indicator and one conversational indicator.
	content := "I felt something when she said that"
	first := Classify(content)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(content), "classification must be deterministic")
	}
}

func TestExtractEmotions(t *testing.T) {
	got := ExtractEmotions("I was so happy and excited, though a little worried about tomorrow")
	assert.Equal(t, []string{"fear", "joy"}, got)

	assert.Empty(t, ExtractEmotions("the quarterly report is due on thursday"))
}

func TestExtractEmotions_Sorted(t *testing.T) {
	got := ExtractEmotions("surprised and angry and sad and in love and afraid and happy")
	assert.Equal(t, []string{"anger", "fear", "joy", "love", "sadness", "surprise"}, got)
}

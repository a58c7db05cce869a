package tokens

import "testing"

func TestWordCounter(t *testing.T) {
	c := WordCounter{}

	cases := map[string]int{
		"":                      0,
		"one":                   1,
		"one two three":         3,
		"  padded   spacing  ":  2,
		"line\nbreaks\ncount\n": 3,
	}
	for text, want := range cases {
		if got := c.Count(text); got != want {
			t.Errorf("Count(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestWordCounter_Monotonic(t *testing.T) {
	c := WordCounter{}
	short := "a few words"
	long := short + " and then some more words after"
	if c.Count(long) <= c.Count(short) {
		t.Error("longer text should count more tokens")
	}
}

func TestNewFromEnv_DefaultsToWords(t *testing.T) {
	t.Setenv("RECALL_TOKENIZER", "")
	if _, ok := NewFromEnv().(WordCounter); !ok {
		t.Error("expected WordCounter by default")
	}
}

// Package tokens provides pluggable token counting for context budgeting.
package tokens

import (
	"os"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates the token cost of a piece of text. Implementations
// must be idempotent and monotonic in text length.
type Counter interface {
	Count(text string) int
}

// WordCounter approximates tokens by whitespace-separated words. It is
// the default counter: deterministic, dependency-free at runtime, and
// good enough for budget enforcement.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter counts tokens with a real BPE encoding, matching what
// OpenAI-compatible models bill for.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (default cl100k_base).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewFromEnv picks a counter from RECALL_TOKENIZER ("tiktoken" or
// "words"). Falls back to word counting if the encoding cannot load.
func NewFromEnv() Counter {
	if os.Getenv("RECALL_TOKENIZER") == "tiktoken" {
		if c, err := NewTiktokenCounter(os.Getenv("RECALL_TOKENIZER_ENCODING")); err == nil {
			return c
		}
	}
	return WordCounter{}
}

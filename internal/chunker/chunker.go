// Package chunker splits memory text into bounded, overlapping segments
// for embedding and indexing.
package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultTargetSize = 1000 // words per chunk
	DefaultOverlap    = 200  // words carried into the next chunk
)

// Options configures chunking behavior. Sizes are in words.
type Options struct {
	TargetSize int
	Overlap    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		Overlap:    DefaultOverlap,
	}
}

var (
	sentenceRe  = regexp.MustCompile(`[^.!?]+[.!?]*`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
	controlRe   = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// CleanText normalizes whitespace and strips control characters.
// Paragraph breaks (blank lines) are preserved so paragraph-based
// splitting stays possible.
func CleanText(text string) string {
	text = controlRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankLineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into overlapping segments of at most TargetSize
// words. Splitting prefers sentence boundaries, falls back to paragraphs
// when the text has too few sentences, and to fixed word windows as the
// last resort. Empty or whitespace-only input returns nil. The same
// input and options always produce the same chunks.
func Chunk(text string, opts Options) []string {
	if opts.TargetSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.TargetSize {
		opts.Overlap = opts.TargetSize / 2
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if wordCount(text) <= opts.TargetSize {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 2 {
		return paragraphChunks(text, opts)
	}
	return accumulate(sentences, " ", opts, true)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// splitSentences breaks text on sentence terminators, keeping the
// terminators attached to their sentence.
func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(strings.ReplaceAll(text, "\n", " "), -1)
	var sentences []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// paragraphChunks splits on blank lines. If the text is a single
// oversized paragraph, fixed word windows are the only option left.
func paragraphChunks(text string, opts Options) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) <= 1 {
		return wordWindows(text, opts)
	}
	return accumulate(paragraphs, "\n\n", opts, false)
}

// accumulate packs units into chunks of at most TargetSize words. When a
// chunk closes and withOverlap is set, the next chunk is seeded with the
// trailing units of the closed chunk, up to Overlap words.
func accumulate(units []string, sep string, opts Options, withOverlap bool) []string {
	var chunks []string
	var current []string
	currentWords := 0

	for _, unit := range units {
		unitWords := wordCount(unit)
		if currentWords+unitWords > opts.TargetSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))
			if withOverlap {
				current = overlapSeed(current, opts.Overlap)
			} else {
				current = nil
			}
			currentWords = 0
			for _, u := range current {
				currentWords += wordCount(u)
			}
		}
		current = append(current, unit)
		currentWords += unitWords
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

// overlapSeed returns the trailing units of a closed chunk totalling at
// most overlap words. If even the last unit is too large, its trailing
// words are used instead.
func overlapSeed(units []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}
	var seed []string
	words := 0
	for i := len(units) - 1; i >= 0; i-- {
		w := wordCount(units[i])
		if words+w > overlap {
			break
		}
		seed = append([]string{units[i]}, seed...)
		words += w
	}
	if len(seed) == 0 {
		fields := strings.Fields(units[len(units)-1])
		if len(fields) > overlap {
			fields = fields[len(fields)-overlap:]
		}
		seed = []string{strings.Join(fields, " ")}
	}
	return seed
}

// wordWindows slides a fixed-size window over the words of the text.
func wordWindows(text string, opts Options) []string {
	words := strings.Fields(text)
	step := opts.TargetSize - opts.Overlap
	if step <= 0 {
		step = opts.TargetSize
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + opts.TargetSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

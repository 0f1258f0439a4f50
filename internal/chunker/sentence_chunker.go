package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the soft upper bound, in characters, of a chunk.
	DefaultChunkSize = 300
	// DefaultOverlap is the overlap hint accepted by NewSentenceChunker.
	DefaultOverlap = 50
	// OverlapWords is how many trailing words of a closed chunk open the next one.
	OverlapWords = 10
)

// SentenceChunker greedily packs sentences into chunks of roughly chunkSize
// characters. Each new chunk starts with the last OverlapWords words of the
// previous one so neighbouring passages share context.
type SentenceChunker struct {
	chunkSize int
	// overlapHint is kept for configuration purposes only; the carried
	// context is always OverlapWords words.
	overlapHint int
}

func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &SentenceChunker{
		chunkSize:   chunkSize,
		overlapHint: overlap,
	}
}

// ChunkSize returns the configured soft chunk length.
func (c *SentenceChunker) ChunkSize() int { return c.chunkSize }

// Chunk splits text into overlapping passages. Empty or blank input yields no chunks.
func (c *SentenceChunker) Chunk(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var chunks []string
	current := ""
	for _, sentence := range SplitSentences(normalized) {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > c.chunkSize {
			chunks = appendChunk(chunks, current)
			current = lastWords(current, OverlapWords) + " " + sentence
			continue
		}
		current += " " + sentence
	}
	return appendChunk(chunks, current)
}

// Normalize collapses every run of whitespace into a single space and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitSentences splits normalized text after '.', '?' or '!' when followed by a space.
// The punctuation stays with the sentence it ends.
func SplitSentences(normalized string) []string {
	if normalized == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 1; i < len(normalized); i++ {
		if normalized[i] != ' ' {
			continue
		}
		switch normalized[i-1] {
		case '.', '?', '!':
			sentences = append(sentences, normalized[start:i])
			start = i + 1
		}
	}
	return append(sentences, normalized[start:])
}

func appendChunk(chunks []string, buf string) []string {
	trimmed := strings.TrimSpace(buf)
	if trimmed == "" {
		return chunks
	}
	return append(chunks, trimmed)
}

func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

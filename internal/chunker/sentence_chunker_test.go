package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyInput(t *testing.T) {
	c := NewSentenceChunker(300, 50)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t  "))
}

func TestChunk_SingleChunkWhenShort(t *testing.T) {
	c := NewSentenceChunker(300, 50)

	chunks := c.Chunk("The sky is blue.   Grass\nis green.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "The sky is blue. Grass is green.", chunks[0])
}

func TestChunk_OversizedSentenceIsKept(t *testing.T) {
	c := NewSentenceChunker(20, 50)
	long := "This single sentence is clearly much longer than twenty characters"

	chunks := c.Chunk(long)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0])
}

func TestChunk_OverlapIsLastTenWords(t *testing.T) {
	c := NewSentenceChunker(80, 0)
	first := "one two three four five six seven eight nine ten eleven twelve."
	second := "Next sentence here."

	chunks := c.Chunk(first + " " + second)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	assert.Equal(t, "three four five six seven eight nine ten eleven twelve. "+second, chunks[1])
}

func TestChunk_OverlapIgnoresHint(t *testing.T) {
	text := sampleText(40)
	a := NewSentenceChunker(120, 0).Chunk(text)
	b := NewSentenceChunker(120, 500).Chunk(text)
	assert.Equal(t, a, b)
}

func TestChunk_Properties(t *testing.T) {
	for _, size := range []int{40, 120, 300} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			text := sampleText(60)
			normalized := Normalize(text)
			chunks := NewSentenceChunker(size, 50).Chunk(text)
			require.NotEmpty(t, chunks)

			longest := 0
			for _, s := range SplitSentences(normalized) {
				if n := utf8.RuneCountInString(s); n > longest {
					longest = n
				}
			}

			var rebuilt []string
			prevWords := 0
			for i, ch := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(ch), "chunk %d is empty", i)

				words := strings.Fields(ch)
				carried := 0
				if i > 0 {
					carried = min(OverlapWords, prevWords)
				}
				carriedLen := utf8.RuneCountInString(strings.Join(words[:carried], " "))
				limit := max(size+1, carriedLen+1+longest)
				assert.LessOrEqual(t, utf8.RuneCountInString(ch), limit, "chunk %d too long", i)
				rebuilt = append(rebuilt, words[carried:]...)
				prevWords = len(words)
			}
			assert.Equal(t, normalized, strings.Join(rebuilt, " "))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Is it? Yes! It is. Version 1.2 ships")
	assert.Equal(t, []string{"Is it?", "Yes!", "It is.", "Version 1.2 ships"}, got)
}

func sampleText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, "Policy %d covers remote work for every team member.\n", i)
		case 1:
			fmt.Fprintf(&b, "Does   item %d apply to contractors?  ", i)
		default:
			fmt.Fprintf(&b, "Yes, item %d applies!\t", i)
		}
	}
	return b.String()
}

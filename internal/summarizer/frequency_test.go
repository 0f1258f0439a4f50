package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handbook = "Vacation requests go to your manager. Vacation days accrue monthly and vacation balance is shown in the portal. " +
	"The office kitchen closes at six. Unused vacation days expire in March."

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize(handbook, 2)
	require.NoError(t, err)

	assert.Contains(t, out, "Vacation days accrue monthly")
	assert.NotContains(t, out, "kitchen")
}

func TestSummarize_FewerSentencesThanRequested(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("Just one sentence here.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Just one sentence here.", out)
}

func TestSummarize_Empty(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTopTerms(t *testing.T) {
	terms := NewFrequencySummarizer().TopTerms(handbook, 2)
	assert.Equal(t, []string{"vacation", "days"}, terms)
}

func TestTokens_Apostrophes(t *testing.T) {
	toks := NewFrequencySummarizer().tokens("Employee’s handbook isn't long")
	assert.Equal(t, []string{"employee’s", "handbook", "isn't", "long"}, toks)
}

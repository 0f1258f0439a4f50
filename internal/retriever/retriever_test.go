package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type stubSearcher struct {
	results []domain.SearchResult
	err     error
	topK    int
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ string, topK int) ([]domain.SearchResult, error) {
	s.calls++
	s.topK = topK
	return s.results, s.err
}

func TestRetrieve_PassesTopK(t *testing.T) {
	s := &stubSearcher{results: []domain.SearchResult{{Similarity: 0.9, Text: "t", Source: "a.md"}}}
	r, err := New(s, nil)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "vacation days", InteractiveTopK)
	require.NoError(t, err)
	assert.Equal(t, s.results, res)
	assert.Equal(t, InteractiveTopK, s.topK)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	s := &stubSearcher{}
	r, err := New(s, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "  \n", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, s.calls)
}

func TestRetrieve_WrapsSearchError(t *testing.T) {
	boom := errors.New("embedder unavailable")
	r, err := New(&stubSearcher{err: boom}, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
}

func TestNew_NilSearcher(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoSearcher)
}

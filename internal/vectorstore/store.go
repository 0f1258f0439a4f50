package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"ragchat/internal/domain"
)

// DefaultTopK is the number of results returned when a caller has no better idea.
const DefaultTopK = 8

var (
	ErrEmptyText         = errors.New("vectorstore: empty text")
	ErrEmptyVector       = errors.New("vectorstore: embedder returned an empty vector")
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	ErrInvalidTopK       = errors.New("vectorstore: topK must be positive")
)

// Store is the knowledge base: an append-only list of embedded chunks kept
// in memory, written through to a Persister on every append and searched
// by brute-force cosine similarity.
type Store struct {
	mu        sync.RWMutex
	chunks    []domain.Chunk
	dimension int

	embedder  domain.Embedder
	persister Persister
	logger    *log.Logger
}

// New creates a store and restores its contents from persister.
func New(embedder domain.Embedder, persister Persister, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{
		embedder:  embedder,
		persister: persister,
		logger:    logger.WithPrefix("vectorstore"),
	}
	s.Restore()
	return s
}

// Restore replaces the in-memory knowledge base with the persisted one.
// Unreadable or inconsistent data is logged and leaves the store empty.
func (s *Store) Restore() {
	chunks, err := s.persister.Load()
	if err != nil {
		s.logger.Error("could not load knowledge base, starting empty", "location", s.persister.Location(), "err", err)
		chunks = nil
	}
	dim, err := checkDimensions(chunks)
	if err != nil {
		s.logger.Error("inconsistent knowledge base, starting empty", "location", s.persister.Location(), "err", err)
		chunks, dim = nil, 0
	}

	s.mu.Lock()
	s.chunks = chunks
	s.dimension = dim
	s.mu.Unlock()

	s.logger.Info("knowledge base loaded", "chunks", len(chunks), "dimension", dim)
}

// Append embeds text and adds it as a chunk of source, then persists the
// whole store. When persisting fails the chunk is dropped again so memory
// and storage stay identical.
func (s *Store) Append(ctx context.Context, source, text string) error {
	_, err := s.AppendAll(ctx, source, []string{text})
	return err
}

// AppendAll adds every text as a chunk of source with a single persist.
// Either all chunks are stored or none are. Blank texts are skipped; the
// number of stored chunks is returned.
func (s *Store) AppendAll(ctx context.Context, source string, texts []string) (int, error) {
	batch := make([]domain.Chunk, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk of %s: %w", source, err)
		}
		if len(vec) == 0 {
			return 0, ErrEmptyVector
		}
		if len(batch) > 0 && len(vec) != len(batch[0].Vector) {
			return 0, fmt.Errorf("%w: %s mixes %d and %d", ErrDimensionMismatch, source, len(batch[0].Vector), len(vec))
		}
		batch = append(batch, domain.Chunk{Source: source, Text: text, Vector: vec})
	}
	if len(batch) == 0 {
		return 0, ErrEmptyText
	}
	dim := len(batch[0].Vector)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) > 0 && dim != s.dimension {
		return 0, fmt.Errorf("%w: store has %d, got %d", ErrDimensionMismatch, s.dimension, dim)
	}
	n := len(s.chunks)
	s.chunks = append(s.chunks, batch...)
	if err := s.persister.Save(s.chunks); err != nil {
		s.chunks = s.chunks[:n]
		return 0, fmt.Errorf("persist knowledge base: %w", err)
	}
	s.dimension = dim
	return len(batch), nil
}

// Search returns at most topK chunks ordered by descending similarity to
// query. An empty store answers with no results without embedding the query.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if s.Len() == 0 {
		return []domain.SearchResult{}, nil
	}

	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(qv) != s.dimension {
		return nil, fmt.Errorf("%w: store has %d, query has %d", ErrDimensionMismatch, s.dimension, len(qv))
	}
	results := make([]domain.SearchResult, len(s.chunks))
	for i, c := range s.chunks {
		results[i] = domain.SearchResult{Similarity: Similarity(qv, c.Vector), Text: c.Text, Source: c.Source}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Persist writes the current knowledge base to the persister.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persister.Save(s.chunks)
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dimension returns the vector length of the stored chunks, 0 when empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Sources returns the distinct source names in insertion order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range s.chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out = append(out, c.Source)
	}
	return out
}

// HasSource reports whether any chunk was ingested from source.
func (s *Store) HasSource(source string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chunks {
		if c.Source == source {
			return true
		}
	}
	return false
}

// Similarity is the cosine similarity of a and b. It is 0 when either
// vector has zero norm. Vectors of different length are compared over
// their common prefix.
func Similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func checkDimensions(chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	dim := len(chunks[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: chunk 0 has no vector", ErrDimensionMismatch)
	}
	for i, c := range chunks {
		if len(c.Vector) != dim {
			return 0, fmt.Errorf("%w: chunk %d has %d, expected %d", ErrDimensionMismatch, i, len(c.Vector), dim)
		}
	}
	return dim, nil
}

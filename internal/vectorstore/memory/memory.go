package memory

import (
	"sync"

	"ragchat/internal/domain"
)

// Storage keeps the saved knowledge base in process memory only. It backs
// the "memory" store backend and is handy in tests.
type Storage struct {
	mu      sync.Mutex
	chunks  []domain.Chunk
	saves   int
	failErr error
}

func NewStorage(initial ...domain.Chunk) *Storage {
	return &Storage{chunks: cloneChunks(initial)}
}

func (s *Storage) Load() ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChunks(s.chunks), nil
}

func (s *Storage) Save(chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.chunks = cloneChunks(chunks)
	s.saves++
	return nil
}

func (s *Storage) Location() string { return "memory" }

// Saves returns how many successful saves happened.
func (s *Storage) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Chunks returns a copy of the last saved state.
func (s *Storage) Chunks() []domain.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChunks(s.chunks)
}

// FailWith makes every following Save return err. Pass nil to recover.
func (s *Storage) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

func cloneChunks(in []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(in))
	for i, c := range in {
		out[i] = domain.Chunk{Source: c.Source, Text: c.Text, Vector: append([]float64(nil), c.Vector...)}
	}
	return out
}

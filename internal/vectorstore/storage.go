package vectorstore

import "ragchat/internal/domain"

// Persister saves and loads the whole knowledge base.
//
// Load returns an empty slice and a nil error when nothing has been saved
// yet. Save always receives the complete chunk list and replaces whatever
// was stored before.
type Persister interface {
	Load() ([]domain.Chunk, error)
	Save(chunks []domain.Chunk) error
	Location() string
}

package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"ragchat/internal/domain"
)

// InteractiveTopK is the result count used by chat turns.
const InteractiveTopK = 5

var (
	ErrEmptyQuery = errors.New("retriever: empty query")
	ErrNoSearcher = errors.New("retriever: searcher must not be nil")
)

// Retriever returns the knowledge base chunks most similar to a query.
type Retriever struct {
	searcher domain.Searcher
	logger   *log.Logger
}

func New(searcher domain.Searcher, logger *log.Logger) (*Retriever, error) {
	if searcher == nil {
		return nil, ErrNoSearcher
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{searcher: searcher, logger: logger.WithPrefix("retriever")}, nil
}

// Retrieve returns at most topK results in descending similarity order.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	results, err := r.searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(results) > 0 {
		r.logger.Debug("retrieved", "results", len(results), "best", results[0].Similarity, "source", results[0].Source)
	} else {
		r.logger.Debug("retrieved nothing")
	}
	return results, nil
}

package domain

import "context"

// Chunk is a bounded passage of a source document together with its embedding.
type Chunk struct {
	Source string    `json:"source"`
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// SearchResult represents a stored chunk scored against a query.
type SearchResult struct {
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of a conversation.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode tells which knowledge source produced an answer.
type Mode string

const (
	ModeInternal Mode = "internal"
	ModeExternal Mode = "external"
)

// ExternalSource is the citation reported for answers produced with web search.
const ExternalSource = "external search"

// Reply is the outcome of a single routed turn.
type Reply struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Mode    Mode     `json:"mode"`
	Score   float64  `json:"score"`
}

// Embedder converts free text into a fixed-dimension numeric vector.
// The same embedder is used for documents and queries.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces text from a prompt. GenerateWithSearch lets the
// provider consult a web search tool before answering.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSearch(ctx context.Context, prompt string) (string, error)
}

// Chunker splits document text into passages suitable for indexing.
type Chunker interface {
	Chunk(text string) []string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Searcher is the read side of the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

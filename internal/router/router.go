package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"ragchat/internal/domain"
)

const (
	// DefaultThreshold is the minimum best similarity for answering from
	// the knowledge base. The comparison is inclusive.
	DefaultThreshold = 0.4
	// DefaultMaxHistory is how many trailing turns are shown to the model.
	DefaultMaxHistory = 6
	DefaultTopK       = 5
)

// Retriever is the retrieval dependency of the router.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// TokenCounter measures prompt size for logging.
type TokenCounter interface {
	Count(text string) (int, error)
}

type Config struct {
	Threshold  float64
	TopK       int
	MaxHistory int
}

// Router decides per query whether the knowledge base is trustworthy
// enough to answer from, and builds the matching prompt.
type Router struct {
	retriever Retriever
	generator domain.Generator
	tokens    TokenCounter
	cfg       Config
	logger    *log.Logger
}

// New creates a router. tokens may be nil. Zero Config fields take the
// package defaults; a threshold must be positive to be honoured.
func New(retriever Retriever, generator domain.Generator, tokens TokenCounter, cfg Config, logger *log.Logger) *Router {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		retriever: retriever,
		generator: generator,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger.WithPrefix("router"),
	}
}

// Route answers query given the prior turns of the conversation. It never
// modifies history; recording the turn is up to the caller.
func (r *Router) Route(ctx context.Context, query string, history []domain.ChatTurn) (domain.Reply, error) {
	results, err := r.retriever.Retrieve(ctx, query, r.cfg.TopK)
	if err != nil {
		return domain.Reply{}, err
	}
	best := BestScore(results)
	mode := Decide(best, r.cfg.Threshold)
	recent := Window(history, r.cfg.MaxHistory)

	var (
		prompt  string
		answer  string
		sources []string
	)
	switch mode {
	case domain.ModeInternal:
		prompt = InternalPrompt(recent, results, query)
		r.logPrompt(mode, best, prompt)
		answer, err = r.generator.Generate(ctx, prompt)
		sources = UniqueSources(results)
	default:
		prompt = ExternalPrompt(recent, query)
		r.logPrompt(mode, best, prompt)
		answer, err = r.generator.GenerateWithSearch(ctx, prompt)
		sources = []string{domain.ExternalSource}
	}
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate %s answer: %w", mode, err)
	}

	return domain.Reply{Answer: answer, Sources: sources, Mode: mode, Score: best}, nil
}

func (r *Router) logPrompt(mode domain.Mode, best float64, prompt string) {
	keyvals := []interface{}{"mode", mode, "score", fmt.Sprintf("%.3f", best), "chars", len(prompt)}
	if r.tokens != nil {
		if n, err := r.tokens.Count(prompt); err == nil {
			keyvals = append(keyvals, "tokens", n)
		}
	}
	r.logger.Info("routing query", keyvals...)
}

// BestScore is the similarity of the first result, 0 when there is none.
func BestScore(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Similarity
}

// Decide picks internal mode when best reaches threshold.
func Decide(best, threshold float64) domain.Mode {
	if best >= threshold {
		return domain.ModeInternal
	}
	return domain.ModeExternal
}

// Window returns the last n turns of history.
func Window(history []domain.ChatTurn, n int) []domain.ChatTurn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// FormatHistory renders turns one per line as "USER: ..." or "ASSISTANT: ...".
func FormatHistory(turns []domain.ChatTurn) string {
	var b strings.Builder
	for _, t := range turns {
		role := "USER"
		if t.Role == domain.RoleAssistant {
			role = "ASSISTANT"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	return b.String()
}

// InternalPrompt grounds the question in the retrieved passages.
func InternalPrompt(history []domain.ChatTurn, results []domain.SearchResult, query string) string {
	lines := make([]string, 0, len(results))
	for _, res := range results {
		lines = append(lines, fmt.Sprintf("- %s (Source: %s)", res.Text, res.Source))
	}
	return fmt.Sprintf(`You are a helpful company assistant.

CONVERSATION HISTORY:
%s
RETRIEVED DOCUMENT CONTEXT:
%s

NEW USER QUESTION: %s

Answer using the context and the conversation history. Cite the sources.`,
		FormatHistory(history), strings.Join(lines, "\n"), query)
}

// ExternalPrompt asks the model to answer with the help of web search.
func ExternalPrompt(history []domain.ChatTurn, query string) string {
	return fmt.Sprintf(`CONVERSATION HISTORY:
%s
NEW USER QUESTION: %s

Answer using web search.`, FormatHistory(history), query)
}

// UniqueSources lists the sources of results once each, in first-seen order.
func UniqueSources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, res := range results {
		if _, ok := seen[res.Source]; ok {
			continue
		}
		seen[res.Source] = struct{}{}
		out = append(out, res.Source)
	}
	return out
}

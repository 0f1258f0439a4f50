package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
)

var (
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrBadFilename    = errors.New("invalid file name")
	ErrNoText         = errors.New("no text could be extracted from the document")
	ErrEmptyUpload    = errors.New("uploaded file is empty")
	ErrUnknownSession = errors.New("unknown session")
)

// KnowledgeBase is the write side of the vector store as used by ingestion.
type KnowledgeBase interface {
	AppendAll(ctx context.Context, source string, texts []string) (int, error)
	HasSource(source string) bool
	Sources() []string
	Len() int
}

// Router answers a query given the prior turns of the conversation.
type Router interface {
	Route(ctx context.Context, query string, history []domain.ChatTurn) (domain.Reply, error)
}

// Sessions stores per-conversation chat history.
type Sessions interface {
	History(id string) ([]domain.ChatTurn, error)
	Record(id, query, answer string) error
}

// TermSummarizer is a Summarizer that can also list dominant terms.
type TermSummarizer interface {
	domain.Summarizer
	TopTerms(text string, n int) []string
}

// Assistant ties ingestion of the knowledge folder to the chat turn boundary.
type Assistant struct {
	folder     string
	kb         KnowledgeBase
	chunker    domain.Chunker
	router     Router
	sessions   Sessions
	summarizer TermSummarizer
	logger     *log.Logger

	summaryMaxSentences int

	// serialises the known-source check with the append of a document
	ingestMu sync.Mutex
}

type Options struct {
	Folder              string
	KnowledgeBase       KnowledgeBase
	Chunker             domain.Chunker
	Router              Router
	Sessions            Sessions
	Summarizer          TermSummarizer
	SummaryMaxSentences int
	Logger              *log.Logger
}

func NewAssistant(opts Options) *Assistant {
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 3
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Assistant{
		folder:              opts.Folder,
		kb:                  opts.KnowledgeBase,
		chunker:             opts.Chunker,
		router:              opts.Router,
		sessions:            opts.Sessions,
		summarizer:          opts.Summarizer,
		summaryMaxSentences: opts.SummaryMaxSentences,
		logger:              opts.Logger.WithPrefix("assistant"),
	}
}

// Folder returns the knowledge folder path.
func (a *Assistant) Folder() string { return a.folder }

// ScanReport describes one pass over the knowledge folder.
type ScanReport struct {
	OnDisk    int      `json:"on_disk"`
	Indexed   []string `json:"indexed"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed"`
	NewChunks int      `json:"new_chunks"`
	Summary   string   `json:"summary,omitempty"`
	TopTerms  []string `json:"top_terms,omitempty"`
}

// ScanFolder indexes every supported file of the knowledge folder whose
// name is not yet a source of the knowledge base. Files already known are
// skipped even when their content changed. Unreadable files are logged and
// reported as failed; the scan carries on.
func (a *Assistant) ScanFolder(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	if err := os.MkdirAll(a.folder, 0o755); err != nil {
		return report, fmt.Errorf("create knowledge folder: %w", err)
	}
	entries, err := os.ReadDir(a.folder)
	if err != nil {
		return report, fmt.Errorf("read knowledge folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !extract.Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	report.OnDisk = len(names)
	a.logger.Info("scanning knowledge folder", "folder", a.folder, "documents", len(names))

	var fresh strings.Builder
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		text, added, err := a.ingestFile(ctx, name)
		switch {
		case err != nil:
			a.logger.Error("could not index document", "file", name, "err", err)
			report.Failed = append(report.Failed, name)
		case added == 0:
			report.Skipped++
		default:
			a.logger.Info("indexed document", "file", name, "chunks", added)
			report.Indexed = append(report.Indexed, name)
			report.NewChunks += added
			fresh.WriteString(text)
			fresh.WriteString("\n")
		}
	}

	if fresh.Len() > 0 && a.summarizer != nil {
		if summary, err := a.summarizer.Summarize(fresh.String(), a.summaryMaxSentences); err == nil {
			report.Summary = summary
		}
		report.TopTerms = a.summarizer.TopTerms(fresh.String(), 5)
	}
	if len(report.Indexed) == 0 {
		a.logger.Info("all documents already indexed", "chunks", a.kb.Len())
	} else {
		a.logger.Info("added new documents", "documents", len(report.Indexed), "chunks", report.NewChunks)
	}
	return report, nil
}

// ingestFile extracts and indexes one file of the knowledge folder. It
// returns 0 added chunks when the file is already known.
func (a *Assistant) ingestFile(ctx context.Context, name string) (string, int, error) {
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()

	if a.kb.HasSource(name) {
		return "", 0, nil
	}
	text, err := extract.File(filepath.Join(a.folder, name))
	if err != nil {
		return "", 0, err
	}
	n, err := a.ingestLocked(ctx, name, text)
	return text, n, err
}

// IngestDocument chunks text and stores it under source, unless source is
// already known.
func (a *Assistant) IngestDocument(ctx context.Context, source, text string) (int, error) {
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()
	if a.kb.HasSource(source) {
		return 0, nil
	}
	return a.ingestLocked(ctx, source, text)
}

func (a *Assistant) ingestLocked(ctx context.Context, source, text string) (int, error) {
	chunks := a.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, ErrNoText
	}
	return a.kb.AppendAll(ctx, source, chunks)
}

// UploadResult is the outcome of Upload.
type UploadResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped"`
}

// Upload saves a new document into the knowledge folder and indexes it.
// A filename that is already a source is skipped without touching the disk.
// Files without extractable text are removed again; files that failed to
// index are kept for the next folder scan.
func (a *Assistant) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return UploadResult{}, ErrBadFilename
	}
	if !extract.Supported(name) {
		return UploadResult{}, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, name)
	}
	result := UploadResult{Filename: name}

	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()

	if a.kb.HasSource(name) {
		a.logger.Info("upload skipped, document already indexed", "file", name)
		result.Skipped = true
		return result, nil
	}
	if err := os.MkdirAll(a.folder, 0o755); err != nil {
		return result, fmt.Errorf("create knowledge folder: %w", err)
	}
	path := filepath.Join(a.folder, name)
	written, err := saveFile(path, r)
	if err != nil {
		return result, err
	}
	if written == 0 {
		_ = os.Remove(path)
		return result, ErrEmptyUpload
	}

	text, err := extract.File(path)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrNoText
	}
	if err == nil {
		result.Chunks, err = a.ingestLocked(ctx, name, text)
		if err != nil && !errors.Is(err, ErrNoText) {
			// the file stays so a later scan indexes it once the provider recovers
			a.logger.Warn("upload saved but not indexed", "file", name, "err", err)
			return result, err
		}
	}
	if err != nil {
		_ = os.Remove(path)
		return result, err
	}
	a.logger.Info("uploaded document", "file", name, "chunks", result.Chunks)
	return result, nil
}

func saveFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	return n, nil
}

// SanitizeFilename reduces name to its base name, rejecting names that
// cannot be a regular file in the knowledge folder.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	if strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

// Chat runs one turn of session id. The exchange is added to the session
// history only when an answer was produced; on error the history stays as
// it was and the session remains usable.
func (a *Assistant) Chat(ctx context.Context, sessionID, query string) (domain.Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Reply{}, ErrEmptyQuery
	}
	history, err := a.sessions.History(sessionID)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("%w: %v", ErrUnknownSession, err)
	}

	reply, err := a.router.Route(ctx, query, history)
	if err != nil {
		a.logger.Error("chat turn failed", "session", sessionID, "err", err)
		return domain.Reply{}, err
	}
	if err := a.sessions.Record(sessionID, query, reply.Answer); err != nil {
		return domain.Reply{}, fmt.Errorf("%w: %v", ErrUnknownSession, err)
	}
	return reply, nil
}

// Stats summarises the knowledge base.
type Stats struct {
	Chunks  int      `json:"chunks"`
	Sources []string `json:"sources"`
}

func (a *Assistant) Stats() Stats {
	return Stats{Chunks: a.kb.Len(), Sources: a.kb.Sources()}
}

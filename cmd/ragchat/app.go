package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/generation"
	"ragchat/internal/logging"
	"ragchat/internal/retriever"
	"ragchat/internal/router"
	"ragchat/internal/service"
	"ragchat/internal/session"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/jsonfile"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/sqlite"
)

type appOptions struct {
	// withGenerator is false for commands that never answer questions.
	withGenerator bool
	logOutput     io.Writer
	// logToFile forces a log file even when log.file is not configured.
	logToFile bool
}

// app is the assembled component graph shared by all commands.
type app struct {
	cfg       *config.AppConfig
	logger    *log.Logger
	store     *vectorstore.Store
	sessions  *session.Store
	assistant *service.Assistant
	closers   []func() error
}

func loadConfig() (*config.AppConfig, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logFile := cfg.Log.File
	if logFile == "" && opts.logToFile {
		logFile = "ragchat.log"
	}
	logger, closeLog, err := logging.New(logging.Options{Level: level, File: logFile, Fallback: opts.logOutput})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	emb, err := newEmbedder(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	persister, err := a.newPersister()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}
	a.store = vectorstore.New(emb, persister, logger)
	a.sessions = session.NewStore()

	var rt service.Router
	if opts.withGenerator {
		gen, err := generation.NewClient(generation.Config{
			BaseURL:           cfg.Generator.BaseURL,
			APIKeyEnv:         cfg.Generator.APIKeyEnv,
			Model:             cfg.Generator.Model,
			SearchModel:       cfg.Generator.SearchModel,
			SearchContextSize: cfg.Generator.SearchContextSize,
			Timeout:           time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("generator init failed: %w", err)
		}
		ret, err := retriever.New(a.store, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		tokens := router.NewTiktokenCounter(cfg.Generator.Model)
		tokens.Warm()
		rt = router.New(ret, gen, tokens, router.Config{
			Threshold:  cfg.Router.Threshold(),
			TopK:       cfg.Router.TopK,
			MaxHistory: cfg.Router.MaxHistory,
		}, logger)
	}

	a.assistant = service.NewAssistant(service.Options{
		Folder:              cfg.KnowledgeFolder,
		KnowledgeBase:       a.store,
		Chunker:             chunker.NewSentenceChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap),
		Router:              rt,
		Sessions:            a.sessions,
		Summarizer:          summarizer.NewFrequencySummarizer(),
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Logger:              logger,
	})
	return a, nil
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension)
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:         oc.BaseURL,
			APIKeyEnv:       oc.APIKeyEnv,
			Model:           oc.Model,
			Timeout:         time.Duration(oc.TimeoutSecs) * time.Second,
			AllowMissingKey: oc.AllowMissingKey,
		})
		if err != nil {
			return nil, err
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
	return embedding.WithRetry(emb, cfg.Embedder.MaxRetries), nil
}

func (a *app) newPersister() (vectorstore.Persister, error) {
	vs := a.cfg.VectorStore
	switch vs.Backend {
	case "json":
		return jsonfile.New(vs.Path), nil
	case "sqlite":
		st, err := sqlite.Open(vs.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "memory":
		return memory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s", vs.Backend)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// scanSummary renders a scan report as the one-line TUI header.
func scanSummary(r service.ScanReport, total int) string {
	s := fmt.Sprintf("%d documents in folder, %d newly indexed, %d chunks in knowledge base", r.OnDisk, len(r.Indexed), total)
	if len(r.Failed) > 0 {
		s += fmt.Sprintf(", %d failed", len(r.Failed))
	}
	if len(r.TopTerms) > 0 {
		s += fmt.Sprintf(" | new topics: %v", r.TopTerms)
	}
	return s
}

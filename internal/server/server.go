package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"ragchat/internal/server/api"
	"ragchat/internal/service"
)

const (
	sessionIdleLimit = 24 * time.Hour
	pruneSchedule    = "@every 1h"
)

// Assistant is the service surface used by the HTTP server.
type Assistant interface {
	api.Assistant
	ScanFolder(ctx context.Context) (service.ScanReport, error)
}

// Sessions is the session store surface used by the HTTP server.
type Sessions interface {
	api.Sessions
	Prune(maxIdle time.Duration) int
}

type Config struct {
	Addr        string
	BodyLimitMB int
	// RescanSchedule is a cron schedule for rescanning the knowledge folder.
	RescanSchedule string
}

type Server struct {
	cfg       Config
	app       *fiber.App
	assistant Assistant
	sessions  Sessions
	logger    *log.Logger
}

func New(cfg Config, assistant Assistant, sessions Sessions, logger *log.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.BodyLimitMB <= 0 {
		cfg.BodyLimitMB = 20
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:       cfg,
		assistant: assistant,
		sessions:  sessions,
		logger:    logger.WithPrefix("server"),
	}
	s.app = s.routes()
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler:          api.ErrorHandler,
			BodyLimit:             s.cfg.BodyLimitMB * 1024 * 1024,
			DisableStartupMessage: true,
			AppName:               "ragchat",
		})
		checkHandler = api.NewCheckHandler()
		chatHandler  = api.NewChatHandler(s.assistant, s.sessions)
		fileHandler  = api.NewFileHandler(s.assistant)
	)
	app.Use(recover.New())
	app.Use(s.requestLogger)

	check := app.Group("/check")
	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1 := app.Group("/api/v1")
	apiv1.Post("/chat", chatHandler.HandleChat)
	apiv1.Post("/upload", fileHandler.HandleUpload)
	apiv1.Post("/sessions", chatHandler.HandleNewSession)
	apiv1.Delete("/sessions/:id", chatHandler.HandleDeleteSession)
	apiv1.Get("/stats", chatHandler.HandleStats)
	return app
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var apiErr api.Error
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
	}
	s.logger.Debug("request", "method", c.Method(), "path", c.Path(), "status", status, "took", time.Since(start))
	return err
}

// Run serves until ctx is cancelled, running the scheduled jobs alongside.
func (s *Server) Run(ctx context.Context) error {
	sched, err := s.scheduler(ctx)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) scheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if s.cfg.RescanSchedule != "" {
		if _, err := c.AddFunc(s.cfg.RescanSchedule, func() { s.rescan(ctx) }); err != nil {
			return nil, err
		}
		s.logger.Info("scheduled knowledge folder rescan", "schedule", s.cfg.RescanSchedule)
	}
	if _, err := c.AddFunc(pruneSchedule, func() {
		if n := s.sessions.Prune(sessionIdleLimit); n > 0 {
			s.logger.Info("pruned idle sessions", "count", n)
		}
	}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) rescan(ctx context.Context) {
	report, err := s.assistant.ScanFolder(ctx)
	if err != nil {
		s.logger.Error("scheduled rescan failed", "err", err)
		return
	}
	if len(report.Indexed) > 0 || len(report.Failed) > 0 {
		s.logger.Info("scheduled rescan", "indexed", len(report.Indexed), "failed", len(report.Failed), "chunks", report.NewChunks)
	}
}

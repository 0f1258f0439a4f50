package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and upload HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	a, err := newApp(appOptions{withGenerator: true, logOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.assistant.ScanFolder(ctx); err != nil {
		return err
	}

	listen := a.cfg.Server.Addr
	if addr != "" {
		listen = addr
	}
	srv := server.New(server.Config{
		Addr:           listen,
		BodyLimitMB:    a.cfg.Server.BodyLimitMB,
		RescanSchedule: a.cfg.Server.RescanSchedule,
	}, a.assistant, a.sessions, a.logger)
	return srv.Run(ctx)
}

package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	Long: `Scan the knowledge folder for new documents, then open the chat window.
Logs are written to log.file (ragchat.log when unset) to keep the screen clean.
Type exit or quit, or press ctrl+c, to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(appOptions{withGenerator: true, logToFile: true, logOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.assistant.ScanFolder(ctx)
	if err != nil {
		return err
	}
	sessionID := a.sessions.Create()
	m := tui.New(ctx, a.assistant, sessionID, scanSummary(report, a.store.Len()))
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/tui"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{withGenerator: true, logOutput: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if _, err := a.assistant.ScanFolder(ctx); err != nil {
			return err
		}
		reply, err := a.assistant.Chat(ctx, a.sessions.Create(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Mode: %s\n", tui.ModeLabel(reply))
		fmt.Fprintf(out, "Answer: %s\n", reply.Answer)
		fmt.Fprintf(out, "Sources: %s\n", strings.Join(reply.Sources, ", "))
		return nil
	},
}

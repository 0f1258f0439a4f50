package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index new documents of the knowledge folder and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{logOutput: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.assistant.ScanFolder(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Documents in %q: %d\n", a.assistant.Folder(), report.OnDisk)
		fmt.Fprintf(out, "Newly indexed: %d (%d chunks)\n", len(report.Indexed), report.NewChunks)
		for _, name := range report.Indexed {
			fmt.Fprintf(out, "  + %s\n", name)
		}
		fmt.Fprintf(out, "Already indexed: %d\n", report.Skipped)
		if len(report.Failed) > 0 {
			fmt.Fprintf(out, "Failed: %s\n", strings.Join(report.Failed, ", "))
		}
		if report.Summary != "" {
			fmt.Fprintf(out, "\nSummary of new content:\n%s\n", report.Summary)
		}
		fmt.Fprintf(out, "Knowledge base: %d chunks\n", a.store.Len())
		return nil
	},
}

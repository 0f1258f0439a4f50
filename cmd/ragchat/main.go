package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	addr    string
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Company assistant answering from your documents or the web",
	Long: `ragchat indexes the documents of a knowledge folder into a local vector
store and answers questions from them. When no indexed passage is similar
enough to the question, it answers with a web search instead.

Without a subcommand the interactive chat is started.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./config.yaml, then ~/.config/ragchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return chatCmd.RunE(cmd, args)
	}
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "textproof",
	Short: "textproof — originality checks for chat messages and documents",
	Long:  "textproof ingests Telegram messages and uploaded documents, extracts their text and asks an LLM backend for an originality verdict.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and analysis pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default: ./config.toml)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

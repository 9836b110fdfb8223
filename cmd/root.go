package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "wattpad-downloader",
	Short: "Download stories as EPUB or PDF books",
	Long:  "Download stories as EPUB or PDF books, one-shot or as an HTTP service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

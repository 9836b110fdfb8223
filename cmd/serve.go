package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wattpad-downloader/config"
	"wattpad-downloader/logger"
	"wattpad-downloader/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download HTTP service",
	Long:  "Run the download HTTP service",
	RunE:  runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	p, err := newPipeline(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer p.close()

	srv := server.New(p.downloader, p.assembler, p.cache, log)
	if err := srv.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("server stopped: %v", err)
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"certdispatch/internal/config"
	"certdispatch/internal/http/server"
	"certdispatch/internal/infra/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogging(cfg)

		rt, err := build(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		app := server.New(server.Deps{
			Config:  cfg,
			Batch:   rt.orchestrator,
			Pool:    rt.pool,
			Metrics: rt.metrics,
		})
		logging.Info("Starting server", "addr", cfg.Server.Host+cfg.Server.Port, "output_dir", cfg.Documents.OutputDir)

		idleConnsClosed := make(chan struct{})
		startServer(app, cfg, idleConnsClosed)
		<-idleConnsClosed
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

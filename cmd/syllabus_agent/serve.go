package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/config"
	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/server"
)

var (
	servePort       int
	serveConfigFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that exposes analysis sessions, progress streaming and result export.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfigFile)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.APIKey == "" {
		logger.Warn("no API key configured; analyses will fail",
			zap.String("env", config.EnvAPIKey))
		fmt.Fprintf(os.Stderr, "Warning: %s is not set; analyses will fail until it is provided.\n", config.EnvAPIKey)
	}

	runner, closeRunner := newRunner(cmd.Context(), cfg, logger)
	defer closeRunner()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Session: sessionConfig(cfg),
		Logger:  logger,
	}, runner)

	return srv.Start(cmd.Context())
}

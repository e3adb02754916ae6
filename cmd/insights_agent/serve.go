package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/company-insights/internal/server"
	"github.com/jonathan/company-insights/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing POST /analyze-website and POST /conversations.
Both endpoints require "Authorization: Bearer <SECRET_KEY>" and are rate limited per client IP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := appConfig
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.RequireSecrets(true); err != nil {
		return err
	}

	rateConfig, err := ratelimit.LoadConfig(cfg.RateLimit, cfg.ConverseRateLimit)
	if err != nil {
		return fmt.Errorf("failed to load rate limit config: %w", err)
	}

	svc, err := newServices(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		SecretKey: cfg.SecretKey,
		RateLimit: rateConfig,
		Logger:    logger.Named("server"),
	}, svc.analyzer, svc.agent)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

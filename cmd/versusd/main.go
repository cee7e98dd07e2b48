// Package main is the entry point for the versusd sync daemon.
// versusd keeps the local unread badges, notifications, and chat state in
// sync with the backend over REST and the realtime change feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/versusfit/versus/internal/config"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/session"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configFile := flag.String("config", "", "config file (default is $HOME/.config/versus/config.yaml)")
	logLevel := flag.String("log-level", "", "override logging level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "override logging format (json, console)")
	accessToken := flag.String("access-token", "", "backend access token (defaults to $VERSUS_ACCESS_TOKEN)")
	flag.Parse()

	cfg, loader, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logger := logging.Component("versusd")

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Warn().Err(err).Msg("failed to create directories")
	}

	if cfgUsed := loader.ConfigFileUsed(); cfgUsed != "" {
		logger.Debug().Str("config_file", cfgUsed).Msg("loaded config file")
	}

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("versusd starting")

	token := *accessToken
	if token == "" {
		token = os.Getenv("VERSUS_ACCESS_TOKEN")
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: no access token (use --access-token or $VERSUS_ACCESS_TOKEN)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := session.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize session")
		os.Exit(1)
	}

	if err := sess.Start(ctx, token); err != nil {
		logger.Error().Err(err).Msg("failed to start session")
		_ = sess.Close(ctx)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info().Msg("versusd shutting down")

	shutdownCtx := context.Background()
	if err := sess.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("versusd exited with error")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

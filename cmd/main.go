package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/shared"
)

// envConfigPath overrides the default config file location.
const envConfigPath = "JOBSYNC_CONFIG"

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p := os.Getenv(envConfigPath); p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv()
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "jobsync",
		Usage:    "Start, follow and finalize playlist sync jobs",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if cerr := runner.Close(closeCtx); cerr != nil {
		logger.Warn("failed to close session cleanly", "error", cerr)
	}
	cancel()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else if errors.Is(err, context.Canceled) {
			os.Exit(130)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

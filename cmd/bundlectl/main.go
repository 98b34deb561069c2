package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bundlectl/bundlectl/cmd/bundlectl/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Setup structured logging
	setupLogging()

	// Create context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute root command
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	os.Exit(commands.ExitCode(err))
}

// setupLogging configures zerolog until the project configuration is loaded
func setupLogging() {
	level := zerolog.InfoLevel
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Use console writer for human-readable output
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

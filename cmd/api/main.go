// Command api serves stored reconciliation runs and accepts new ones over HTTP.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/eshaffer321/ledger-reconciler/internal/cli"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/logging"
)

func main() {
	flags, err := cli.ParseServeFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	logger := logging.NewLoggerWithSystem(config.LoggingConfig{Level: "info", Format: "text"}, "api")
	cfg, err := cli.LoadConfig(flags.ConfigFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

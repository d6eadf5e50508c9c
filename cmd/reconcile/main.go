// Command reconcile matches a bank statement CSV against a ledger export
// and writes a reconciliation report.
//
// Exit status is 0 when the match rate meets the minimum, 1 when the run
// needs manual review and 2 on any error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/ledger-reconciler/internal/cli"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := cli.ParseReconcileFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return cli.ExitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\nRun 'reconcile -h' for usage.\n", err)
		return cli.ExitError
	}

	// Setup logging
	bootLogger := logging.NewLoggerWithSystem(config.LoggingConfig{Level: "info", Format: "text"}, "reconcile")
	cfg, err := cli.LoadConfig(flags.ConfigFile, bootLogger)
	if err != nil {
		bootLogger.Error("Failed to load config", slog.String("error", err.Error()))
		return cli.ExitError
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := cli.RunReconcile(ctx, cfg, flags, os.Stdout, logger)
	if err != nil {
		logger.Error("Reconciliation failed", slog.String("error", err.Error()))
		if cli.IsUsageError(err) {
			fmt.Fprintln(os.Stderr, "Run 'reconcile -h' for usage.")
		}
	}
	return code
}

// Command eodctl runs a single end-of-day batch for one account and date and
// prints the batch summary as JSON.
//
//	eodctl -account U1234567 -date 2024-03-05 [-base-dir /srv/extracts]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/di"
	"github.com/aristath/eodledger/pkg/logger"
)

func main() {
	account := flag.String("account", "", "external account id (required)")
	date := flag.String("date", "", "trading date, YYYY-MM-DD (required)")
	baseDir := flag.String("base-dir", "", "extract base directory (defaults to EODLEDGER_EXTRACT_DIR)")
	flag.Parse()

	if *account == "" || *date == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*account, *date, *baseDir); err != nil {
		fmt.Fprintln(os.Stderr, "eodctl:", err)
		os.Exit(1)
	}
}

func run(externalID, date, baseDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// The scheduled account list is not needed for a one-off run
	cfg.Accounts = nil

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	acct, err := container.AccountRepo.EnsureByExternalID(ctx, externalID)
	if err != nil {
		return err
	}

	summary, err := container.EODService.ProcessBatch(ctx, acct, date, baseDir)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

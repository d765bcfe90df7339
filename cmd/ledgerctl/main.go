package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dafibh/ledgerflow/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	ownerFlag string
	kindFlag  string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator tooling for ledgerflow periods",
		Long: `ledgerctl runs lifecycle operations against the ledgerflow database:
schema migrations, rolling expired periods, closing, repairs and liquidity summaries.

Configuration is read from the same environment variables as the API server.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner id the command acts on")
	rootCmd.PersistentFlags().StringVar(&kindFlag, "kind", "standard", "period kind (standard, credit_cycle)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rollCmd())
	rootCmd.AddCommand(closeCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(sweepCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = loaded
	return nil
}

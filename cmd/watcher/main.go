package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upbitwatch/config"
	"upbitwatch/internal/upbit/sink"
	"upbitwatch/internal/upbit/watcher"
	"upbitwatch/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Polls Upbit balances and prices and reports the change of every market each cycle",
	Long: `watcher polls the Upbit account balances and the current price of every tracked
market on a fixed interval, computes the change against the previous cycle and
publishes the result to the enabled consumers (console table, websocket feed,
Redis, Kafka, Postgres). It runs until interrupted.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// tables go to stdout, logs to stderr
		log, err := logger.NewWithWriter(cfg.Log, os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()

		creds, err := config.LoadCredentials(cfg)
		if err != nil {
			return err
		}

		w, err := watcher.New(cfg, creds, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("watcher starting", zap.String("quote", cfg.Upbit.QuoteCurrency), zap.Duration("interval", cfg.Poller.Interval))
		if err := w.Run(ctx); err != nil {
			log.Error("watcher stopped", zap.Error(err))
			return err
		}
		log.Info("watcher stopped")
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Print the tradable markets of the quote currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Upbit.REST.Timeout)
		defer cancel()

		symbols, err := watcher.ListSymbols(ctx, cfg)
		if err != nil {
			return err
		}
		for _, s := range symbols {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print the account holdings with their current prices once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		creds, err := config.LoadCredentials(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Upbit.REST.Timeout)
		defer cancel()

		holdings, err := watcher.FetchHoldings(ctx, cfg, creds)
		if err != nil {
			return err
		}
		if len(holdings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no holdings")
			return nil
		}
		out := cmd.OutOrStdout()
		sink.NewConsole(out, cfg.Upbit.QuoteCurrency, 0).RenderHoldings(out, holdings)
		return nil
	},
}

// loadConfig reads the config directory flag and applies the interval override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("interval") {
		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			return nil, err
		}
		cfg.Poller.Interval = interval
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "directory containing config.yaml")
	rootCmd.PersistentFlags().Duration("interval", time.Second, "poll interval, overrides poller.interval")

	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(balancesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var cerr *config.ConfigError
		if errors.As(err, &cerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

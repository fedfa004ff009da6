package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"proposalRelay/internal/chain"
	"proposalRelay/internal/config"
	"proposalRelay/internal/dao"
	"proposalRelay/internal/explorer"
	"proposalRelay/internal/metrics"
	"proposalRelay/internal/notify"
	"proposalRelay/internal/relay"
	"proposalRelay/internal/storage"
	"proposalRelay/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "DAO proposal to Telegram relay",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path (default ./config.ini)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Watch for ProposalInitialized events and post them to Telegram",
		RunE:  runRelay,
	}

	runCmd.Flags().String("rpc", "", "EVM RPC URL")
	runCmd.Flags().String("explorer-url", "", "Etherscan-compatible API URL")
	runCmd.Flags().String("event-contract", "", "contract emitting ProposalInitialized")
	runCmd.Flags().String("frontend-contract", "", "contract address used in proposal links")
	runCmd.Flags().String("environment", "", "links environment (selects <environment>_base_url)")
	runCmd.Flags().String("telegram-api-url", "", "Telegram Bot API URL")
	runCmd.Flags().String("bot-token", "", "Telegram bot token")
	runCmd.Flags().String("chat-id", "", "Telegram chat id")
	runCmd.Flags().Float64("telegram-rate", 0, "maximum Telegram messages per second")
	runCmd.Flags().Int("telegram-burst", 0, "Telegram messages allowed back to back")
	runCmd.Flags().Duration("telegram-timeout", 0, "Telegram HTTP timeout")
	runCmd.Flags().Duration("poll-interval", 0, "delay between filter polls")
	runCmd.Flags().Uint64("batch-size", 0, "maximum blocks per eth_getLogs call")
	runCmd.Flags().Uint64("lookback-blocks", 0, "blocks below the cursor scanned again on every poll")
	runCmd.Flags().String("journal-out", "", "append sent notifications to this JSONL file")
	runCmd.Flags().String("journal-pg-dsn", "", "append sent notifications to Postgres")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(runCmd)

	abiCmd := &cobra.Command{
		Use:   "abi",
		Short: "Fetch the event contract ABI and list its events",
		RunE:  runABI,
	}

	abiCmd.Flags().String("explorer-url", "", "Etherscan-compatible API URL")
	abiCmd.Flags().String("event-contract", "", "contract emitting ProposalInitialized")

	root.AddCommand(abiCmd)

	return root
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventAddress, err := chain.ChecksumAddress(cfg.EventContract)
	if err != nil {
		logger.Error("invalid event contract address", zap.Error(err))
		return err
	}

	abiJSON, err := explorer.NewResolver(cfg.ExplorerURL, nil).Fetch(ctx, cfg.EventContract)
	if err != nil {
		logger.Error("failed to fetch abi", zap.Error(err))
		return err
	}
	logger.Info("successfully fetched contract abi", zap.Int("bytes", len(abiJSON)))

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		logger.Error("connect rpc", zap.Error(err))
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		logger.Error("get chain id", zap.Error(err))
		return fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("rpc connection initialized", zap.String("chain_id", chainID.String()))

	contract, err := dao.NewContract(eventAddress, abiJSON, chainClient.Backend())
	if err != nil {
		logger.Error("contract init failed", zap.Error(err))
		return err
	}
	logger.Info("dao contract initialized", zap.String("address", contract.Address().Hex()))

	journal, closeJournal, err := openJournal(ctx, cfg)
	if err != nil {
		logger.Error("journal init failed", zap.Error(err))
		return err
	}
	defer closeJournal()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	filter, err := relay.NewLogFilter(ctx, chainClient, relay.FilterConfig{
		Address:   contract.Address(),
		Topic0:    contract.EventID(),
		BatchSize: cfg.BatchSize,
		Lookback:  cfg.LookbackBlocks,
	}, logger)
	if err != nil {
		logger.Error("filter init failed", zap.Error(err))
		return err
	}
	logger.Info("ProposalInitialized event filter created", zap.Uint64("from_block", filter.Next()))

	notifier := notify.New(notify.Config{
		ChatID: cfg.TelegramChatID,
		Rate:   cfg.TelegramRate,
		Burst:  cfg.TelegramBurst,
	},
		notify.NewLinkBuilder(cfg.LinkBaseURL, cfg.FrontendContract),
		notify.NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramTimeout),
		journal,
		logger,
	)

	runner := relay.NewRunner(relay.RunConfig{PollInterval: cfg.PollInterval}, filter, contract, notifier, logger)

	logger.Info("relay start",
		zap.String("contract", contract.Address().Hex()),
		zap.String("environment", cfg.LinkEnvironment),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Uint64("lookback_blocks", cfg.LookbackBlocks),
		zap.String("journal_out", cfg.JournalOut),
		zap.Bool("journal_pg", cfg.JournalPGDSN != ""),
	)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("relay stopped")
	return nil
}

func runABI(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := chain.ChecksumAddress(cfg.EventContract)
	if err != nil {
		return err
	}
	if cfg.ExplorerURL == "" {
		return fmt.Errorf("%s is required", config.KeyExplorerURL)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	abiJSON, err := explorer.NewResolver(cfg.ExplorerURL, nil).Fetch(ctx, cfg.EventContract)
	if err != nil {
		logger.Error("failed to fetch abi", zap.Error(err))
		return err
	}

	contract, err := dao.NewContract(address, abiJSON, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "contract %s\n", contract.Address().Hex())
	fmt.Fprintf(out, "%s topic0 %s\n", dao.EventProposalInitialized, contract.EventID().Hex())
	for _, sig := range contract.Events() {
		fmt.Fprintln(out, sig)
	}
	return nil
}

// openJournal builds the configured notification journals. The returned
// journal is nil when none is configured.
func openJournal(ctx context.Context, cfg config.Config) (storage.Journal, func(), error) {
	var journals storage.MultiJournal
	closers := []func(){}

	if cfg.JournalOut != "" {
		journals = append(journals, storage.NewJsonlStorage(cfg.JournalOut))
	}
	if cfg.JournalPGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.JournalPGDSN)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, func() {}, fmt.Errorf("ensure journal schema: %w", err)
		}
		journals = append(journals, store)
		closers = append(closers, store.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch len(journals) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return journals[0], closeAll, nil
	default:
		return journals, closeAll, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// internal/bot/runner.go
package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kothwatch/internal/config"
	"kothwatch/internal/criteria"
	"kothwatch/internal/logger"
	"kothwatch/internal/market"
	"kothwatch/internal/notify"
	"kothwatch/internal/paper"
	"kothwatch/internal/rugcheck"
	"kothwatch/internal/store"
	"kothwatch/internal/store/postgres"
	"kothwatch/internal/wallet"
)

// Runner assembles the engine from configuration and owns process
// lifecycle: storage, auth, notification channel, signal handling.
type Runner struct {
	logger     *logger.Logger
	config     *config.Config
	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		logger:     log,
		config:     cfg,
		shutdownCh: make(chan os.Signal, 1),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("Signal received: " + sig.String())
		cancel()
	}()

	st, cleanup, err := r.buildStore(shutdownCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	reports := r.buildReports(shutdownCtx)
	notifier := r.buildNotifier()

	evaluator, err := r.buildEvaluator(st)
	if err != nil {
		return err
	}

	dexScreener := market.NewDexScreener(r.logger.Logger)
	defer dexScreener.Close()
	pumpFun := market.NewPumpFun(r.logger.Logger)

	simulator, err := paper.NewSimulator(paper.Config{
		StartingBalance: r.config.StartingBalance,
		HoldLimit:       r.config.HoldLimit(),
		Interval:        r.config.TrackInterval(),
	}, dexScreener, st, r.logger.Logger)
	if err != nil {
		return fmt.Errorf("build simulator: %w", err)
	}

	engine := NewEngine(r.config, pumpFun, dexScreener, reports,
		evaluator, st, simulator, notifier, r.logger)
	return engine.Run(shutdownCtx)
}

// buildStore returns a Postgres-backed store when configured, and the
// in-memory store otherwise.
func (r *Runner) buildStore(ctx context.Context) (store.Store, func(), error) {
	if r.config.PostgresURL == "" {
		r.logger.Info("No postgres_url configured, state will not survive restarts")
		return store.NewMemory(), func() {}, nil
	}

	pg, err := postgres.NewStorage(ctx, r.config.PostgresURL, r.logger.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect storage: %w", err)
	}
	return pg, pg.Close, nil
}

// buildReports logs in to the auditor when a wallet is configured.
// Auth failure degrades to empty reports instead of aborting.
func (r *Runner) buildReports(ctx context.Context) ReportFetcher {
	var w *wallet.Wallet
	if r.config.WalletFile != "" {
		loaded, err := wallet.LoadWallet(r.config.WalletFile)
		if err != nil {
			r.logger.Warn("Failed to load wallet, audit reports disabled", zap.Error(err))
		} else {
			w = loaded
		}
	}

	client := rugcheck.NewClient(w, r.logger.Logger)
	if w != nil {
		if err := client.Authenticate(ctx); err != nil {
			r.logger.Warn("Auditor login failed, continuing with empty reports", zap.Error(err))
		}
	}
	return client
}

func (r *Runner) buildNotifier() notify.Notifier {
	if r.config.TelegramToken == "" {
		return notify.NewLog(r.logger.Logger)
	}
	tg, err := notify.NewTelegram(r.config.TelegramToken, r.config.TelegramChatID, r.logger.Logger)
	if err != nil {
		r.logger.Warn("Telegram setup failed, falling back to log alerts", zap.Error(err))
		return notify.NewLog(r.logger.Logger)
	}
	return tg
}

func (r *Runner) buildEvaluator(st store.Store) (*criteria.Evaluator, error) {
	policy, err := criteria.NewPolicy(r.config.EntryPolicy, r.logger.Logger)
	if err != nil {
		return nil, err
	}
	allowlist, err := criteria.LoadAllowlist(r.config.AllowlistFile)
	if err != nil {
		return nil, fmt.Errorf("load allowlist: %w", err)
	}
	return criteria.NewEvaluator(
		policy,
		criteria.NewSecondaryChecks(allowlist, r.logger.Logger),
		store.NewCounters(st, r.logger.Logger),
		r.logger.Logger,
	), nil
}

func (r *Runner) Shutdown() {
	r.logger.Info("Shutting down")
	if err := r.logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vanguard/internal/adapters/chain"
	httpadapter "vanguard/internal/adapters/http"
	"vanguard/internal/adapters/notify"
	pg "vanguard/internal/adapters/postgres"
	"vanguard/internal/adapters/reports"
	"vanguard/internal/adapters/telegram"
	"vanguard/internal/config"
	"vanguard/internal/domain"
	"vanguard/internal/ports"
	"vanguard/internal/services/audit"
	"vanguard/internal/services/report"
	"vanguard/internal/workers/broadcast"
)

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	cfg, err := config.Load()
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)
	if err != nil {
		log.Warn("config", "err", err)
	}
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required for the job store")
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens; it returns instead of exiting so the
// deferred closes always execute.
func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	var _ ports.JobRepository = db

	store, err := reports.NewFileStore(cfg.ReportsDir)
	if err != nil {
		return fmt.Errorf("reports dir %s: %w", cfg.ReportsDir, err)
	}

	eth, err := chain.Dial(ctx, cfg.ProviderEndpoint, cfg.ScanTimeout)
	if err != nil {
		return fmt.Errorf("chain provider: %w", err)
	}
	defer eth.Close()

	cspSeverity, ok := domain.ParseSeverity(cfg.CSPSeverity)
	if !ok {
		log.Warn("unknown csp severity, using CRITICAL", "value", cfg.CSPSeverity)
		cspSeverity = domain.SeverityCritical
	}
	site := audit.NewSiteScanner(audit.SiteOptions{
		Timeout:          cfg.ScanTimeout,
		LatencyThreshold: cfg.LatencyThreshold,
		Rules: audit.SiteRules{
			Clickjacking:    cfg.CheckClickjacking,
			CSP:             cfg.CheckCSP,
			CSPSeverity:     cspSeverity,
			MetaDescription: cfg.CheckMetaDescription,
		},
	})
	walletOpts := audit.DefaultWalletOptions()
	walletOpts.Cost = cfg.WalletCost
	wallet := audit.NewWalletScanner(eth, walletOpts)

	var renderOpts []report.Option
	if cfg.ReportFont != "" {
		renderOpts = append(renderOpts, report.WithUTF8Font(cfg.ReportFont))
	}

	deps := audit.Deps{
		Site:     site,
		Wallet:   wallet,
		Renderer: report.New(renderOpts...),
		Reports:  store,
		Jobs:     db,
		Log:      log,
	}

	// Optional outbound notifications
	var workers sync.WaitGroup
	if cfg.NotificationEndpoint != "" && cfg.BroadcastWorkers > 0 {
		queue := broadcast.NewQueue(64, log)
		hook := notify.NewWebhook(cfg.NotificationEndpoint, cfg.NotificationKey, cfg.ScanTimeout)
		workers.Add(1)
		go func() {
			defer workers.Done()
			broadcast.Run(ctx, queue, hook, cfg.BroadcastWorkers, cfg.ScanTimeout)
		}()
		deps.Broadcast = queue
		log.Info("broadcast workers started", "workers", cfg.BroadcastWorkers)
	}

	svc := audit.New(deps)

	srv := httpadapter.New(svc, store, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	if cfg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		bot := telegram.New(api, svc, cfg.BotRateLimit, log)
		go func() {
			if err := bot.Run(ctx); err != nil {
				log.Error("telegram bot stopped", "err", err)
			}
		}()
		log.Info("telegram bot started", "username", api.Self.UserName)
	} else {
		log.Info("telegram bot disabled, no token")
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			cancel()
			workers.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	// Workers see the cancel, finish the delivery in hand and return.
	cancel()
	workers.Wait()
	return nil
}

// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adwave/ads-bot/internal/campaign"
	"github.com/adwave/ads-bot/internal/config"
	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/locale"
	"github.com/adwave/ads-bot/internal/logger"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/notify"
	"github.com/adwave/ads-bot/internal/payment"
	"github.com/adwave/ads-bot/internal/publisher"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/postgres"
	"github.com/adwave/ads-bot/internal/telegram"
)

const (
	eventBufferSize = 256
	shutdownGrace   = 10 * time.Second
)

// Runner assembles the service and owns its lifecycle.
type Runner struct {
	cfg    *config.Config
	log    *logger.Logger
	store  storage.Storage
	bus    *events.Bus
	met    *metrics.Metrics
	mon    *payment.Monitor
	worker *publisher.Worker
	orders *OrderService
}

// NewRunner wires every component from configuration. Migrations run
// here so the process refuses to start against an unprepared database.
func NewRunner(cfg *config.Config, log *logger.Logger) (*Runner, error) {
	store, err := postgres.NewStorage(cfg.PostgresURL, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	scanner, err := ledger.NewClient(cfg.RPCList, cfg.ReceivingAddress, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("create ledger client: %w", err)
	}

	met := metrics.New()
	bus := events.NewBus(log.Logger, eventBufferSize)
	messenger := telegram.NewClient(cfg.TelegramToken, log.Logger)

	catalog := locale.NewCatalog()
	languages := locale.NewLanguageResolver(staticProfiles{}, log.Logger)
	notifier := notify.New(messenger, catalog, languages, cfg.OperatorChatID, log.Logger)

	matcher := payment.NewMatcher(cfg.AmountTolerance, cfg.LookbackDuration(), log.Logger)
	mon := payment.NewMonitor(&payment.MonitorConfig{
		Store:        store,
		Scanner:      scanner,
		Matcher:      matcher,
		Bus:          bus,
		Alerter:      notifier,
		Metrics:      met,
		Logger:       log.Logger,
		PollInterval: cfg.PollDuration(),
	})

	campaigns := campaign.NewService(store, bus, met, log.Logger)
	dispatcher := publisher.NewDispatcher(store, messenger, log.Logger)
	worker := publisher.NewWorker(&publisher.WorkerConfig{
		Store:      store,
		Dispatcher: dispatcher,
		Campaigns:  campaigns,
		Notifier:   notifier,
		Bus:        bus,
		Metrics:    met,
		Logger:     log.Logger,
		Interval:   cfg.PublishDuration(),
		BatchSize:  cfg.PublishBatchSize,
	})

	payments := payment.NewService(store, cfg.ReceivingAddress, log.Logger)
	orders := NewOrderService(&OrderServiceConfig{
		Store:      store,
		Payments:   payments,
		Monitor:    mon,
		Campaigns:  campaigns,
		Messenger:  messenger,
		Localizer:  catalog,
		Languages:  languages,
		PaymentTTL: cfg.PaymentTTLDuration(),
		Logger:     log.Logger,
	})

	return &Runner{
		cfg:    cfg,
		log:    log,
		store:  store,
		bus:    bus,
		met:    met,
		mon:    mon,
		worker: worker,
		orders: orders,
	}, nil
}

// Orders exposes the order entry point to the transport layer.
func (r *Runner) Orders() *OrderService {
	return r.orders
}

// Run blocks until SIGINT/SIGTERM or a fatal component error, then
// shuts the pipelines down within the grace window.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := r.worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("publish worker: %w", err)
		}
		return nil
	})

	if r.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return r.serveMetrics(gctx)
		})
	}

	r.log.Info("Service started",
		zap.String("receiving_address", r.cfg.ReceivingAddress),
		zap.Duration("poll_interval", r.cfg.PollDuration()),
		zap.Duration("publish_interval", r.cfg.PublishDuration()))

	err := g.Wait()
	r.shutdown()
	return err
}

func (r *Runner) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.met.Handler())

	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.log.Info("Metrics endpoint listening", zap.String("addr", r.cfg.MetricsAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (r *Runner) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := r.mon.Shutdown(shutdownCtx); err != nil {
		r.log.Warn("Payment monitor shutdown incomplete", zap.Error(err))
	}
	if err := r.bus.Shutdown(shutdownCtx); err != nil {
		r.log.Warn("Event bus shutdown incomplete", zap.Error(err))
	}

	r.log.Info("Service stopped")
	if err := r.log.Sync(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}

// staticProfiles stands in for the user-profile service until one is
// wired; every user resolves to the localizer's fallback language.
type staticProfiles struct{}

func (staticProfiles) GetUserLanguage(context.Context, int64) (string, error) {
	return "", nil
}

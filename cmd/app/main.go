// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	payAdapters "github.com/kamol666/finish/internal/infra/adapters/payment"
	tele "github.com/kamol666/finish/internal/infra/adapters/telegram"
	pg "github.com/kamol666/finish/internal/infra/db/postgres"
	"github.com/kamol666/finish/internal/infra/i18n"
	"github.com/kamol666/finish/internal/infra/logging"
	"github.com/kamol666/finish/internal/infra/metrics"
	red "github.com/kamol666/finish/internal/infra/redis"
	"github.com/kamol666/finish/internal/infra/sched"
	"github.com/kamol666/finish/internal/infra/web"
	"github.com/kamol666/finish/internal/infra/worker"
	"github.com/kamol666/finish/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled: providers are noop")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	planRepo := pg.NewPlanRepo(pool)
	subscriberRepo := pg.NewSubscriberRepo(pool)
	cardRepo := pg.NewCardRepo(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	periodRepo := pg.NewPeriodRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Adapters ----
	providers := payAdapters.BuildRegistry(cfg.Providers, cfg.Runtime.Dev)

	var bot adapter.NotifierBot
	if cfg.Runtime.Dev {
		bot = tele.NewNoopNotifierBot()
	} else {
		bot, err = tele.NewRealNotifierBot(&cfg.Bot)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram bot init failed")
		}
	}

	translator, err := i18n.New("uz")
	if err != nil {
		logger.Fatal().Err(err).Msg("load locale failed")
	}

	// ---- Use cases ----
	notifier := usecase.NewNotifier(bot, translator, logger)
	subUC := usecase.NewSubscriptionUseCase(subscriberRepo, planRepo, periodRepo, cardRepo, providers, tm, logger)
	merchantUC := usecase.NewMerchantUseCase(transactionRepo, subscriberRepo, planRepo, subUC, notifier, tm, logger)
	cardUC := usecase.NewCardUseCase(cardRepo, subscriberRepo, planRepo, providers, subUC, notifier, tm, usecase.DefaultBonusDays, logger)
	renewalUC := usecase.NewRenewalUseCase(cardRepo, subscriberRepo, planRepo, transactionRepo, providers, subUC, notifier, tm, logger)

	// ---- Renewal scheduler ----
	chargePool := worker.NewPool(cfg.Scheduler.Workers)
	chargePool.Start(ctx)
	defer chargePool.Stop()

	renewalWorker := sched.NewRenewalWorker(
		cfg.Scheduler.RenewalInterval,
		cfg.Scheduler.RenewalBatch,
		periodRepo,
		renewalUC,
		chargePool,
		logger,
	)
	go func() {
		if err := renewalWorker.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("renewal worker stopped")
		}
	}()

	reconciler := sched.NewLedgerReconciler(
		cfg.Scheduler.ReconcileInterval,
		cfg.Scheduler.RenewalBatch,
		transactionRepo,
		periodRepo,
		subUC,
		logger,
	)
	go func() {
		if err := reconciler.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("ledger reconciler stopped")
		}
	}()

	// ---- Web ----
	server := web.NewServer(cfg, merchantUC, cardUC, subUC, locker, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("web server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info().Msg("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web shutdown error")
	}
	cancel()
	logger.Info().Msg("bye")
}

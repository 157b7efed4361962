package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"casa/internal/agenda"
	"casa/internal/amqp"
	"casa/internal/auth"
	"casa/internal/cache"
	"casa/internal/cli"
	"casa/internal/config"
	apphttp "casa/internal/http"
	applog "casa/internal/log"
	"casa/internal/services"
	gsheet "casa/internal/sheets/google"
	"casa/internal/store"
	"casa/internal/worker"
)

func main() {
	os.Exit(run())
}

// run starts the server and returns the process exit code once every
// deferred cleanup has run.
func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return 1
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	// Typed as interfaces so a missing broker stays a nil interface.
	var (
		syncPublisher     services.SyncPublisher
		reminderPublisher services.ReminderPublisher
	)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", applog.FieldError, err)
		} else {
			defer client.Close()
			syncPublisher, reminderPublisher = client, client
			logger.Info("AMQP client initialized",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue,
				"reminder_queue", cfg.AMQPReminderQueue)
		}
	} else {
		logger.Info("AMQP disabled - ledger changes are not published")
	}

	dashboard := services.NewDashboardService(res.Backend, 64, time.Minute)
	registry := agenda.NewRegistry(res.Backend, 256, 30*time.Minute)

	caches := cache.NewManager()
	caches.Register("dashboard", dashboard.Cache())
	caches.Register("agenda", registry.Cache())

	reminders := services.NewReminderService(res.Backend, registry, reminderPublisher, cfg.AMQPReminderQueue, loc, now)
	scheduler := services.NewScheduler(loc)
	if _, err := scheduler.ScheduleDaily(cfg.ReminderTime, func() {
		sent, err := reminders.SendDaily(ctx)
		if err != nil {
			logger.Error("Daily reminders failed", applog.FieldError, err, "sent", sent)
			return
		}
		logger.Info("Daily reminders sent", "sent", sent)
	}); err != nil {
		logger.Error("Failed to schedule reminders", applog.FieldError, err, "time", cfg.ReminderTime)
		return 1
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Backend:      res.Backend,
		Agenda:       registry,
		Transactions: services.NewTransactionService(res.Backend, syncPublisher, dashboard),
		Dashboard:    dashboard,
		Shopping:     services.NewShoppingService(res.Backend, now),
		Tokens:       auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL),
		Logger:       logger,
		Now:          now,
		Ready:        res.Ready,
	}, apphttp.Options{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BlockSuspicious:    cfg.BlockSuspicious,
		TrustedProxies:     cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		cli.GracefulShutdown(logger, 30*time.Second, srv.Shutdown)
		return nil
	})

	if syncPublisher == nil && cfg.SheetsEnabled() {
		// Without a broker the server exports the ledger itself.
		syncWorker, err := newInProcessSync(gctx, cfg, res.Backend)
		if err != nil {
			logger.Error("Failed to initialize in-process sync", applog.FieldError, err)
		} else {
			caches.Register("sync_categories", syncWorker.Cache())
			g.Go(func() error { return syncWorker.Run(gctx, nil, cfg.SyncInterval) })
		}
	}

	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("Starting casa server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"reminder_time", cfg.ReminderTime)

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		return 1
	}
	logger.Info("Server stopped gracefully")
	return 0
}

func newInProcessSync(ctx context.Context, cfg *config.Config, backend store.Backend) (*worker.SyncWorker, error) {
	ledger, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return worker.NewSyncWorker(backend, ledger, cfg.SyncBatchSize), nil
}

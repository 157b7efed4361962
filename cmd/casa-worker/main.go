package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"casa/internal/amqp"
	"casa/internal/cache"
	"casa/internal/cli"
	applog "casa/internal/log"
	"casa/internal/sheets"
	gsheet "casa/internal/sheets/google"
	memledger "casa/internal/sheets/memory"
	"casa/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(applog.ComponentWorker)
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return 1
	}

	logger.Info("Starting casa-worker")

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the worker will not see server writes")
	}

	var ledger sheets.LedgerWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			return 1
		}
		ledger = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = memledger.New()
		logger.Info("Google Sheets disabled - exporting to an in-memory ledger")
	}

	syncWorker := worker.NewSyncWorker(res.Backend, ledger, cfg.SyncBatchSize)

	caches := cache.NewManager()
	caches.Register("sync_categories", syncWorker.Cache())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(ctx)

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			return 1
		}
		defer client.Close()
		consumer = client

		reminderLog := logger.WithComponent(applog.ComponentAgenda)
		g.Go(func() error {
			err := client.ConsumeAgendaReminders(gctx, cfg.AMQPReminderQueue, func(ctx context.Context, msg *amqp.AgendaReminderMessage) error {
				reminderLog.InfoContext(ctx, "Agenda reminder",
					applog.FieldOwnerID, msg.OwnerID,
					"date", msg.Date,
					"count", len(msg.Titles),
					"titles", strings.Join(msg.Titles, "; "))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only", "interval", cfg.SyncInterval)
	}

	g.Go(func() error { return syncWorker.Run(gctx, consumer, cfg.SyncInterval) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		return 1
	}
	logger.Info("Worker shutdown complete")
	return 0
}

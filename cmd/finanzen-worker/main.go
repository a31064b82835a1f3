package main

import (
	"context"
	"errors"
	"os"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"finanzen/internal/amqp"
	"finanzen/internal/cli"
	"finanzen/internal/log"
	gsheet "finanzen/internal/sheets/google"
	"finanzen/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting finanzen-worker")

	cfg := cli.LoadAndValidateWorkerConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	historyClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize history spreadsheet client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("History spreadsheet client initialized",
		log.FieldSpreadsheetID, cfg.HistorySpreadsheetID,
		"sheet", historyClient.SheetName())

	w := worker.NewHistoryWorker(repo, historyClient, cfg.SyncBatchSize)

	// Rows left pending while the worker was down.
	if err := w.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	scheduler := cron.New()
	if _, err := w.Schedule(ctx, scheduler, cfg.SyncSchedule()); err != nil {
		logger.Error("Invalid sync schedule", log.FieldError, err, "schedule", cfg.SyncSchedule())
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Periodic sync scheduled", "schedule", cfg.SyncSchedule())

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeAnalysisSync(gctx, w.HandleSyncMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on the periodic sweep only")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")
		stopped := scheduler.Stop()
		<-stopped.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

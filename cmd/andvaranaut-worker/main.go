package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"andvaranaut/internal/amqp"
	"andvaranaut/internal/cli"
	"andvaranaut/internal/report/google"
	"andvaranaut/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting andvaranaut-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Google Sheets export is optional.
	var exporter *google.Client
	if cfg.GoogleSpreadsheetID != "" {
		var err error
		exporter, err = google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	workerConfig := worker.StatsWorkerConfig{
		SweepInterval: cfg.SweepInterval,
		FareRuleName:  cfg.FareRule,
	}
	var statsWorker *worker.StatsWorker
	var err error
	if exporter != nil {
		statsWorker, err = worker.NewStatsWorker(repo, exporter, workerConfig)
	} else {
		statsWorker, err = worker.NewStatsWorker(repo, nil, workerConfig)
	}
	if err != nil {
		logger.Error("Failed to initialize stats worker", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := statsWorker.Start(ctx); err != nil {
		logger.Error("Failed to start stats worker", "error", err)
		os.Exit(1)
	}

	// Saved-calendar messages trigger immediate recomputes; the periodic
	// sweep inside the worker covers anything the broker misses.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic sweep only", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			go func() {
				handler := func(msg *amqp.CalendarSavedMessage) error {
					return statsWorker.HandleCalendarSaved(ctx, msg)
				}
				if err := amqpClient.ConsumeCalendarSaved(ctx, handler); err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Error("Message consumption failed", "error", err)
					}
					cancel()
				}
			}()
			logger.Info("Consuming calendar saved messages", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic sweep only")
	}

	// Scheduled export of the monthly aggregates.
	var scheduler *cron.Cron
	if exporter != nil {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.ExportCron, func() {
			exportCtx, exportCancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer exportCancel()
			if err := statsWorker.ExportAllUsers(exportCtx); err != nil {
				logger.Error("Scheduled stats export failed", "error", err)
			}
		}); err != nil {
			logger.Error("Invalid export cron expression", "error", err, "cron", cfg.ExportCron)
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("Stats export scheduled", "cron", cfg.ExportCron)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := statsWorker.Stop(stopCtx); err != nil {
			logger.Error("Stats worker shutdown error", "error", err)
		}
		cancel()
	})

	select {
	case <-shutdownCtx.Done():
		cli.WaitForShutdown(shutdownCtx, done)
		logger.Info("Worker stopped gracefully")
	case <-ctx.Done():
		logger.Error("Worker stopped after consumption failure")
		os.Exit(1)
	}
}

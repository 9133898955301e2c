package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneylens/internal/amqp"
	"moneylens/internal/cli"
	applog "moneylens/internal/log"
	"moneylens/internal/metrics"
	"moneylens/internal/sheets"
	gsheet "moneylens/internal/sheets/google"
	"moneylens/internal/worker"
)

const metricsAddr = ":9091"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.MustLoadConfig(logger, cli.RoleWorker)

	logger.Info("Starting moneylens-worker")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()

	var exporter sheets.Exporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromEnv(startCtx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", client.SheetName())
	} else {
		exporter = worker.NewLogExporter(logger.WithComponent(applog.ComponentSheets).Slog())
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, logging events only")
	}

	amqpClient, err := amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		_ = metricsSrv.Shutdown(shutdownCtx)
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
	})

	exportWorker := worker.NewExportWorker(exporter, m,
		worker.WithLogger(logger.WithComponent(applog.ComponentWorker).Slog()))
	err = amqpClient.ConsumeExpenseEvents(ctx, exportWorker.HandleExpenseEvent)
	if err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

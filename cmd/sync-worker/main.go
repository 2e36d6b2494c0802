package main

import (
	"context"
	"errors"
	"time"

	"vault/internal/amqp"
	"vault/internal/cli"
	"vault/internal/cloud"
	vlog "vault/internal/log"
	"vault/internal/storage"
	"vault/internal/worker"
)

// periodicCheck catches snapshots whose message was lost.
const periodicCheck = 10 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(vlog.ComponentWorker)
	logger.Info("Starting sync-worker")

	if !cfg.QueuedSync() || cfg.LocalStore != "sqlite" {
		cli.Fatal(logger, "The sync worker needs AMQP_URL and the sqlite store")
	}
	if cfg.CloudBackend == cloud.BackendNone {
		cli.Fatal(logger, "The sync worker needs a cloud backend", "cloud_backend", cfg.CloudBackend)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", vlog.FieldError, err, "path", cfg.SQLiteDBPath)
	}
	defer repo.Close()

	transport, cleanup, err := cloud.New(ctx, cloud.Options{
		Backend:         cfg.CloudBackend,
		Timeout:         cfg.CloudTimeout,
		GCSBucket:       cfg.GCSBucket,
		GCSObjectPrefix: cfg.GCSObjectPrefix,
		AzureBlobURL:    cfg.AzureBlobURL,
		AzureContainer:  cfg.AzureContainer,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize cloud transport", vlog.FieldError, err, vlog.FieldBackend, cfg.CloudBackend)
	}
	defer cleanup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", vlog.FieldError, err)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSnapshotSyncWorker(repo, transport, cfg.CloudAccessToken)

	// On startup, upload a snapshot that might have been missed
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Don't exit - continue with normal operation
		logger.Error("Failed startup sync check", vlog.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(periodicCheck)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.StartupSyncCheck(ctx); err != nil {
					logger.Error("Periodic sync failed", vlog.FieldError, err)
				}
			}
		}
	}()

	err = amqpClient.ConsumeSnapshotSync(ctx, syncWorker.HandleSnapshotSync)
	if err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Message consumption failed", vlog.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}

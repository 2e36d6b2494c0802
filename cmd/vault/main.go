package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"vault/internal/backend"
	"vault/internal/cache"
	"vault/internal/cli"
	"vault/internal/config"
	"vault/internal/core"
	apphttp "vault/internal/http"
	"vault/internal/ledger"
	vlog "vault/internal/log"
	"vault/internal/reconcile"
	"vault/internal/services"
)

const (
	cacheSweepInterval = 5 * time.Minute
	shutdownTimeout    = 30 * time.Second
	stagedImportsCache = "imports"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(vlog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Vault stopped with error", vlog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *vlog.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	settings := core.DefaultSettings()
	if cfg.BaselineIncome > 0 {
		settings.MonthlyIncome = cfg.BaselineIncome
	}
	if cfg.Currency != "" {
		settings.Currency = cfg.Currency
	}
	store := ledger.NewStore(ledger.WithSettings(settings))

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.Rules = store.Rules

	res, err := backend.NewFactory(logger.WithComponent(vlog.ComponentStorage).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to release cloud transport", vlog.FieldError, err)
		}
	}()

	vault := services.NewVaultService(ledger.NewDispatcher(store), res.Repository, res.Publisher)
	defer func() {
		if err := vault.Close(); err != nil {
			logger.Warn("Failed to close vault", vlog.FieldError, err)
		}
	}()

	found, err := vault.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("Vault loaded",
		"found", found,
		vlog.FieldRevision, store.Revision(),
		"queued_sync", vault.Queued())

	staged := cache.NewLRUCache[reconcile.Staged](32, services.StagingTTL)
	res.Caches.Register(stagedImportsCache, staged)
	res.Caches.StartCleanup(cacheSweepInterval)
	defer res.Caches.Stop()

	processor := services.NewRecurringProcessor(vault, cfg.RecurringInterval, cfg.RecurringMaxCatchUp)
	if err := processor.Start(ctx); err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Vault:              vault,
		Sync:               services.NewSyncService(vault, res.Transport, cfg.CloudAccessToken),
		Suggestions:        services.NewSuggestionService(vault, res.Suggester, cfg.SuggestTimeout, cfg.SuggestConcurrency),
		Imports:            services.NewImportService(vault, staged),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxCatchUp:         cfg.RecurringMaxCatchUp,
		Logger:             logger.WithComponent(vlog.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting vault server",
			"port", cfg.Port,
			"store", cfg.LocalStore,
			"cloud_backend", cfg.CloudBackend,
			"suggest_provider", cfg.SuggestProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", vlog.FieldError, err)
		}
		return processor.Stop(shutdownCtx)
	})
	return g.Wait()
}

// Package cli holds the start-up steps shared by cmd/vault, cmd/sync-worker
// and cmd/oauth-init.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vault/internal/config"
	vlog "vault/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, installs the default logger
// for component and validates the configuration. It exits the process on
// failure.
func LoadAndValidateConfig(component string) (*config.Config, *vlog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		vlog.Setup("info", vlog.FormatText, component).Error("Failed to load configuration", vlog.FieldError, err)
		os.Exit(1)
	}
	logger := vlog.Setup(cfg.LogLevel, cfg.LogFormat, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", vlog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// Fatal logs msg with args and exits.
func Fatal(logger *vlog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

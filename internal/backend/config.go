package backend

import (
	"fmt"
	"slices"

	"vault/internal/cloud"
	"vault/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	store := StoreType(appConfig.LocalStore)
	if !store.IsValid() {
		return Config{}, fmt.Errorf("invalid local store in config: %s", appConfig.LocalStore)
	}
	provider := SuggestType(appConfig.SuggestProvider)
	if !provider.IsValid() {
		return Config{}, fmt.Errorf("invalid suggestion provider in config: %s", appConfig.SuggestProvider)
	}

	return Config{
		Store:        store,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Cloud: cloud.Options{
			Backend:         appConfig.CloudBackend,
			Timeout:         appConfig.CloudTimeout,
			GCSBucket:       appConfig.GCSBucket,
			GCSObjectPrefix: appConfig.GCSObjectPrefix,
			AzureBlobURL:    appConfig.AzureBlobURL,
			AzureContainer:  appConfig.AzureContainer,
		},

		Suggest: SuggestConfig{
			Provider:     provider,
			GeminiAPIKey: appConfig.GeminiAPIKey,
			GeminiModel:  appConfig.GeminiModel,
			CacheSize:    appConfig.SuggestCacheSize,
			CacheTTL:     appConfig.SuggestCacheTTL,
		},
	}, nil
}

var cloudBackends = []string{"", cloud.BackendNone, cloud.BackendMemory, cloud.BackendDrive, cloud.BackendGCS, cloud.BackendAzure}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if c.Store == SQLiteStore && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite store")
	}
	if c.AMQPURL != "" {
		if c.Store != SQLiteStore {
			return fmt.Errorf("queued sync requires the sqlite store")
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is provided")
		}
	}
	if !slices.Contains(cloudBackends, c.Cloud.Backend) {
		return fmt.Errorf("invalid cloud backend: %s", c.Cloud.Backend)
	}
	if !c.Suggest.Provider.IsValid() {
		return fmt.Errorf("invalid suggestion provider: %s", c.Suggest.Provider)
	}
	return nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vault/internal/amqp"
	"vault/internal/cache"
	"vault/internal/cloud"
	"vault/internal/services"
	"vault/internal/storage"
	"vault/internal/suggest"
)

// SuggestionCacheName is the cache manager key of the merchant cache.
const SuggestionCacheName = "suggestions"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger

	// newPublisher is swapped in tests to avoid dialing a broker.
	newPublisher func(url, exchange, queue string) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:       logger,
		newPublisher: amqp.NewClient,
	}
}

// CreateBackend implements Factory.CreateBackend. On error everything built
// so far is released.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (res *BackendResult, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res = &BackendResult{Caches: cache.NewManager(), Cleanup: func() error { return nil }}
	defer func() {
		if err != nil {
			err = errors.Join(err, res.release())
			res = nil
		}
	}()

	if res.Repository, err = f.createRepository(config); err != nil {
		return res, err
	}

	transport, cleanup, err := cloud.New(ctx, config.Cloud)
	if err != nil {
		return res, err
	}
	res.Transport, res.Cleanup = transport, cleanup

	res.Publisher = f.createPublisher(config)

	if res.Suggester, err = f.createSuggester(ctx, config, res.Caches); err != nil {
		return res, err
	}

	f.logger.Info("Backend ready",
		"store", config.Store,
		"cloud_backend", cloudName(res.Transport),
		"queued_sync", res.Publisher != nil,
		"suggest_provider", config.Suggest.Provider)
	return res, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, error) {
	switch config.Store {
	case SQLiteStore:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryStore:
		f.logger.Info("Initialized memory store")
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}
}

// createPublisher returns nil when AMQP is not configured or unreachable;
// the vault then works without queued sync.
func (f *DefaultFactory) createPublisher(config Config) services.SyncPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := f.newPublisher(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without queued sync", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) createSuggester(ctx context.Context, config Config, caches *cache.Manager) (suggest.Provider, error) {
	heuristic := suggest.Heuristic{Rules: config.Rules}

	switch config.Suggest.Provider {
	case SuggestNone:
		return nil, nil
	case SuggestHeuristic:
		return heuristic, nil
	case SuggestGemini:
		gemini, err := suggest.NewGemini(ctx, config.Suggest.GeminiAPIKey, config.Suggest.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
		}
		store := cache.NewLRUCache[suggest.Suggestion](config.Suggest.CacheSize, config.Suggest.CacheTTL)
		caches.Register(SuggestionCacheName, store)
		f.logger.Info("Initialized Gemini suggestions",
			"model", config.Suggest.GeminiModel,
			"cache_size", config.Suggest.CacheSize)
		return suggest.Fallback{suggest.NewCached(gemini, store), heuristic}, nil
	default:
		return nil, fmt.Errorf("unsupported suggestion provider: %s", config.Suggest.Provider)
	}
}

func (r *BackendResult) release() error {
	var errs []error
	if r.Publisher != nil {
		errs = append(errs, r.Publisher.Close())
	}
	if r.Repository != nil {
		errs = append(errs, r.Repository.Close())
	}
	if r.Cleanup != nil {
		errs = append(errs, r.Cleanup())
	}
	return errors.Join(errs...)
}

func cloudName(t cloud.Transport) string {
	if t == nil {
		return cloud.BackendNone
	}
	return t.Name()
}

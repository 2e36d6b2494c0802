// Package backend builds the infrastructure behind the vault from
// configuration: the local snapshot repository, the cloud transport, the
// sync publisher and the suggestion provider chain.
package backend

import (
	"context"
	"time"

	"vault/internal/cache"
	"vault/internal/cloud"
	"vault/internal/core"
	"vault/internal/services"
	"vault/internal/storage"
	"vault/internal/suggest"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything the factory built. Transport, Publisher
// and Suggester are nil when the matching feature is disabled.
type BackendResult struct {
	Repository storage.Repository
	Transport  cloud.Transport
	Publisher  services.SyncPublisher
	Suggester  suggest.Provider
	Caches     *cache.Manager

	// Cleanup releases the transport. The repository and publisher are
	// closed by the vault service that owns them.
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Store        StoreType
	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Cloud cloud.Options

	Suggest SuggestConfig

	// Rules feeds the heuristic provider the user's current rules.
	Rules func() []core.Rule
}

// SuggestConfig selects and tunes the suggestion chain.
type SuggestConfig struct {
	Provider     SuggestType
	GeminiAPIKey string
	GeminiModel  string
	CacheSize    int
	CacheTTL     time.Duration
}

// StoreType represents the type of local snapshot store
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}

// SuggestType names a suggestion chain.
type SuggestType string

const (
	SuggestNone      SuggestType = "none"
	SuggestHeuristic SuggestType = "heuristic"
	SuggestGemini    SuggestType = "gemini"
)

func (st SuggestType) IsValid() bool {
	switch st {
	case SuggestNone, SuggestHeuristic, SuggestGemini:
		return true
	default:
		return false
	}
}

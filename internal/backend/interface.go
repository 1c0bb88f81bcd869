// Package backend builds the storage repository, the event publisher and the
// ledger service selected by configuration.
package backend

import (
	"context"
	"time"

	"simplemoney/internal/amqp"
	"simplemoney/internal/services"
	"simplemoney/internal/storage"
)

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// An empty AMQPURL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	BackendTimeout time.Duration
	Currency       string
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is a ready ledger service with the resources behind it. Events is
// nil when publishing is disabled.
type Result struct {
	Ledger     *services.LedgerService
	Repository storage.Repository
	Events     *amqp.Client
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateRepository(ctx context.Context, config Config) (storage.Repository, error)
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

package backend

import (
	"context"
	"errors"
	"fmt"

	"simplemoney/internal/amqp"
	"simplemoney/internal/log"
	"simplemoney/internal/services"
	"simplemoney/internal/storage"
	"simplemoney/internal/storage/memory"
	"simplemoney/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory() *DefaultFactory {
	return &DefaultFactory{logger: log.ForComponent(log.ComponentBackend)}
}

// CreateRepository opens the store selected by config.Type. SQLite and
// Postgres stores are migrated before they are returned.
func (f *DefaultFactory) CreateRepository(ctx context.Context, config Config) (storage.Repository, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.InfoContext(ctx, "Using in-memory repository; data is lost on restart")
		return memory.New(), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "SQLite repository ready", "path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.New(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Postgres repository ready")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// Migrate applies the schema migrations of the configured store. The memory
// store has no schema.
func (f *DefaultFactory) Migrate(ctx context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	switch config.Type {
	case SQLiteBackend:
		if err := storage.RunMigrations(config.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	case PostgresBackend:
		if err := postgres.RunMigrations(config.DatabaseURL); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	default:
		f.logger.InfoContext(ctx, "No migrations for backend", "backend", config.Type)
		return nil
	}
	f.logger.InfoContext(ctx, "Migrations applied", "backend", config.Type)
	return nil
}

// CreateBackend builds the repository, the optional AMQP client and the
// ledger service on top of them. An unreachable broker is logged and
// publishing is disabled; the ledger does not depend on it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := f.CreateRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	var (
		client    *amqp.Client
		publisher services.EventPublisher
	)
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "AMQP unavailable, ledger events disabled", log.FieldError, err)
			client = nil
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "AMQP publisher ready", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
		}
	}

	ledger := services.NewLedgerService(repo, publisher, services.LedgerConfig{
		BackendTimeout: config.BackendTimeout,
		Currency:       config.Currency,
	})

	return &Result{
		Ledger:     ledger,
		Repository: repo,
		Events:     client,
		Cleanup: func() error {
			if err := ledger.Close(); err != nil {
				return errors.Join(errors.New("backend cleanup failed"), err)
			}
			return nil
		},
	}, nil
}

// Package services provides business logic and orchestration services.
//
// LedgerService is the entry point for every ledger mutation. Each mutation
// runs under a per-user lock and is followed by the cascade in cascade.go.
package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/log"
	"simplemoney/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "simplemoney/internal/services"

// EventPublisher receives a notification after each committed mutation.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// LedgerConfig holds configuration for the ledger service
type LedgerConfig struct {
	// BackendTimeout bounds each cascade stage (default: 5s)
	BackendTimeout time.Duration

	// Currency is the go-money code used in user-facing messages (default: BRL)
	Currency string

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// DefaultLedgerConfig returns sensible defaults
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		BackendTimeout: 5 * time.Second,
		Currency:       core.DefaultCurrency,
		Now:            time.Now,
	}
}

// LedgerService orchestrates ledger, goal, challenge and reward operations.
type LedgerService struct {
	repo   storage.Repository
	events EventPublisher
	config LedgerConfig
	locks  *userLocks
	logger *log.Logger
	tracer trace.Tracer
}

// NewLedgerService wires the service. events may be nil, in which case
// publishing is skipped.
func NewLedgerService(repo storage.Repository, events EventPublisher, config LedgerConfig) *LedgerService {
	defaults := DefaultLedgerConfig()
	if config.BackendTimeout <= 0 {
		config.BackendTimeout = defaults.BackendTimeout
	}
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	return &LedgerService{
		repo:   repo,
		events: events,
		config: config,
		locks:  newUserLocks(),
		logger: log.ForComponent(log.ComponentLedger),
		tracer: otel.Tracer(tracerName),
	}
}

func (s *LedgerService) now() time.Time {
	return s.config.Now().UTC()
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.now())
}

func (s *LedgerService) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.BackendTimeout)
}

// Ping checks the repository.
func (s *LedgerService) Ping(ctx context.Context) error {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	return s.repo.Ping(ctx)
}

// committed reports whether a mutation error still left the write in place.
func committed(err error) bool {
	return err == nil || core.CodeOf(err) == core.CodePartial
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.Validation("userId", "missing user id")
	}
	return nil
}

// publish sends a ledger event. Failures are logged only: the mutation is
// already committed and the reconciler does not depend on events.
func (s *LedgerService) publish(ctx context.Context, typ amqp.EventType, userID, entityID string) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "Event publisher not available, skipping ledger event",
			log.FieldEventType, typ)
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(typ, userID, entityID)); err != nil {
		fields := log.NewFields().WithUser(userID)
		fields[log.FieldEventType] = string(typ)
		s.logger.Fail(ctx, "Failed to publish ledger event", log.OpPublish, err, fields)
	}
}

// Close closes the repository and the publisher when it holds resources.
func (s *LedgerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.events.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}

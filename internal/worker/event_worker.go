// Package worker consumes ledger events: it reconciles the affected user and
// exports new transactions to the configured spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/log"
	"simplemoney/internal/services"
	"simplemoney/internal/sheets"
)

// Ledger is the part of services.LedgerService the worker needs.
type Ledger interface {
	Reconcile(ctx context.Context, userID string) (services.CascadeResult, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
}

// EventWorker handles ledger events delivered over AMQP.
type EventWorker struct {
	ledger   Ledger
	exporter sheets.TransactionExporter
	logger   *log.Logger
}

// NewEventWorker creates a worker. exporter may be nil to disable exports.
func NewEventWorker(ledger Ledger, exporter sheets.TransactionExporter) *EventWorker {
	return &EventWorker{
		ledger:   ledger,
		exporter: exporter,
		logger:   log.ForComponent(log.ComponentWorker),
	}
}

// HandleLedgerEvent reconciles the event's user and, for new transactions,
// exports the entry. A returned error asks the broker to redeliver.
func (w *EventWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		log.FieldEventType, e.Type,
		log.FieldUserID, e.UserID)

	res, err := w.ledger.Reconcile(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("reconcile user %s: %w", e.UserID, err)
	}
	if len(res.Advanced) > 0 || len(res.Rewarded) > 0 {
		w.logger.InfoContext(ctx, "Reconciled after event",
			log.FieldEventType, e.Type,
			log.FieldUserID, e.UserID,
			"advanced", len(res.Advanced),
			"rewarded", len(res.Rewarded))
	}

	if e.Type != amqp.EventTransactionCreated {
		return nil
	}
	return w.export(ctx, e)
}

func (w *EventWorker) export(ctx context.Context, e *amqp.LedgerEvent) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping export",
			log.FieldTransactionID, e.EntityID)
		return nil
	}

	tx, err := w.ledger.GetTransaction(ctx, e.UserID, e.EntityID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction gone before export, skipping",
			log.FieldUserID, e.UserID,
			log.FieldTransactionID, e.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.exporter.ExportTransaction(ctx, tx)
	if err != nil {
		w.logger.Fail(ctx, "Failed to export transaction", log.OpExport, err,
			log.NewFields().WithUser(e.UserID).WithTransaction(tx.ID, string(tx.Type), tx.Value.String()))
		return fmt.Errorf("export transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		log.FieldTransactionID, tx.ID,
		log.FieldSheetsRef, ref)
	return nil
}

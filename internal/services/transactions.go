package services

import (
	"context"
	"strings"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/log"

	"github.com/google/uuid"
)

// TransactionInput is the user-supplied part of a new ledger entry.
type TransactionInput struct {
	Name     string               `json:"name"`
	Value    core.Money           `json:"value"`
	Type     core.TransactionType `json:"type"`
	Category string               `json:"category"`
	Date     core.Date            `json:"date"`
}

// TransactionResult is a committed entry together with the derived state.
type TransactionResult struct {
	Transaction core.Transaction
	Cascade     CascadeResult
}

// AddTransaction appends an entry and runs the cascade.
func (s *LedgerService) AddTransaction(ctx context.Context, userID string, in TransactionInput) (TransactionResult, error) {
	if err := requireUser(userID); err != nil {
		return TransactionResult{}, err
	}
	tx := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Value:     in.Value,
		Type:      in.Type,
		Category:  strings.TrimSpace(in.Category),
		Date:      in.Date,
		CreatedAt: s.now(),
	}
	if err := tx.Validate(); err != nil {
		return TransactionResult{}, err
	}

	res, err := s.mutate(ctx, userID, "add transaction", func(ctx context.Context) error {
		return s.repo.InsertTransaction(ctx, tx)
	})
	if !committed(err) {
		return TransactionResult{}, err
	}

	s.logger.InfoContext(ctx, "Transaction added",
		log.NewFields().WithUser(userID).WithTransaction(tx.ID, string(tx.Type), tx.Value.String()).ToSlice()...)
	s.publish(ctx, amqp.EventTransactionCreated, userID, tx.ID)
	return TransactionResult{Transaction: tx, Cascade: res}, err
}

// UpdateTransaction applies patch to a non-deleted entry and runs the
// cascade. Challenges already completed stay completed.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (TransactionResult, error) {
	if err := requireUser(userID); err != nil {
		return TransactionResult{}, err
	}
	if patch.IsEmpty() {
		return TransactionResult{}, core.Validation("patch", "nothing to update")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	current, err := s.getTransaction(ctx, userID, id)
	if err != nil {
		return TransactionResult{}, err
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return TransactionResult{}, err
	}

	res, err := s.applyLedgerMutation(ctx, userID, "update transaction", func(ctx context.Context) error {
		return s.repo.UpdateTransaction(ctx, updated)
	})
	if !committed(err) {
		return TransactionResult{}, err
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithUser(userID).WithTransaction(id, string(updated.Type), updated.Value.String()).ToSlice()...)
	s.publish(ctx, amqp.EventTransactionUpdated, userID, id)
	return TransactionResult{Transaction: updated, Cascade: res}, err
}

// RemoveTransaction soft deletes an entry and runs the cascade.
func (s *LedgerService) RemoveTransaction(ctx context.Context, userID, id string) (CascadeResult, error) {
	if err := requireUser(userID); err != nil {
		return CascadeResult{}, err
	}
	res, err := s.mutate(ctx, userID, "remove transaction", func(ctx context.Context) error {
		return s.repo.SoftDeleteTransaction(ctx, userID, id, s.now())
	})
	if !committed(err) {
		return CascadeResult{}, err
	}

	s.logger.InfoContext(ctx, "Transaction removed",
		log.NewFields().WithUser(userID).WithOperation(log.OpDelete).WithTransaction(id, "", "").ToSlice()...)
	s.publish(ctx, amqp.EventTransactionDeleted, userID, id)
	return res, err
}

// GetTransaction returns a non-deleted entry.
func (s *LedgerService) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	return s.getTransaction(ctx, userID, id)
}

func (s *LedgerService) getTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	tx, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, core.Backend("get transaction", err)
	}
	return tx, nil
}

// GetByPeriod lists the user's entries matching f, newest first.
func (s *LedgerService) GetByPeriod(ctx context.Context, userID string, f core.PeriodFilter) ([]core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.listTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.FilterByPeriod(txs, f), nil
}

// Categories lists the categories used by the user's entries.
func (s *LedgerService) Categories(ctx context.Context, userID string) ([]string, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	txs, err := s.listTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.Categories(txs), nil
}

func (s *LedgerService) listTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, core.Backend("list transactions", err)
	}
	return txs, nil
}

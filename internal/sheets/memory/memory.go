// Package memory records exported transactions in process. It backs tests
// and runs where no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"simplemoney/internal/core"
	ports "simplemoney/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportTransaction stores the row and returns a synthetic row reference.
func (e *Exporter) ExportTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.rows = append(e.rows, ports.Row(tx))
	return fmt.Sprintf("mem:%d", len(e.rows)), nil
}

// Rows returns a copy of the recorded rows.
func (e *Exporter) Rows() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.rows))
	for i, r := range e.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// FailWith makes subsequent exports return err; nil restores success.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

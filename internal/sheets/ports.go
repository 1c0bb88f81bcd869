// Package sheets defines the spreadsheet export port. Adapters live in
// sub-packages.
package sheets

import (
	"context"

	"simplemoney/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends a ledger entry to an external sheet and
	// returns a reference to the written row.
	TransactionExporter interface {
		ExportTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)

// Header is the column layout written by exporters.
var Header = []string{"Data", "Nome", "Tipo", "Categoria", "Valor", "Usuário"}

// Row renders tx in the Header layout.
func Row(tx core.Transaction) []string {
	return []string{
		tx.Date.String(),
		tx.Name,
		string(tx.Type),
		tx.Category,
		tx.Value.String(),
		tx.UserID,
	}
}

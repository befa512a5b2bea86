package sheets

import (
	"context"

	"ledger/internal/core"
)

// Header is the first row of an exported sheet. It matches the CSV export.
var Header = []string{"record_date", "source_name", "amount", "note"}

// Ports for outbound adapters.
type (
	// RecordWriter appends income records to a spreadsheet-like target.
	RecordWriter interface {
		// Append writes records in the given order and returns a reference
		// to the rows written.
		Append(ctx context.Context, records []core.IncomeRecord) (rowRef string, err error)
	}
)

// Row formats a record as one sheet row.
func Row(r core.IncomeRecord) []string {
	note := ""
	if r.Note != nil {
		note = *r.Note
	}
	return []string{r.RecordDate.String(), r.SourceName, r.Amount.String(), note}
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

// Store keeps appended rows in memory. The header is written before the
// first row, as the Google writer does on an empty sheet.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var _ sheets.RecordWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the records and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, records []core.IncomeRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) == 0 {
		s.rows = append(s.rows, append([]string(nil), sheets.Header...))
	}
	first := len(s.rows) + 1
	for _, r := range records {
		s.rows = append(s.rows, sheets.Row(r))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything written, header included.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

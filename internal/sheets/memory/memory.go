// Package memory keeps the installment journal in process memory. It backs
// JOURNAL_BACKEND=memory and the worker tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"financas/internal/sheets"
)

type Journal struct {
	mu   sync.Mutex
	rows []sheets.JournalRow
}

var _ sheets.JournalWriter = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

// Append stores the rows and returns a synthetic range such as "mem:3-5".
func (j *Journal) Append(_ context.Context, rows []sheets.JournalRow) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no journal rows to append")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	first := len(j.rows) + 1
	j.rows = append(j.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(j.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (j *Journal) Rows() []sheets.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.JournalRow(nil), j.rows...)
}

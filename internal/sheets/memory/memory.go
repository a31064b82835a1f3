// Package memory implements the spreadsheet ports in process, for local
// development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"finanzen/internal/core"
	ports "finanzen/internal/sheets"
)

var ErrNotFound = errors.New("spreadsheet not found")

type Store struct {
	mu      sync.Mutex
	reports map[string]core.Report
	order   []string
	history []core.HistoryEntry
}

var (
	_ ports.Reports         = (*Store)(nil)
	_ ports.HistoryAppender = (*Store)(nil)
)

func New() *Store {
	return &Store{reports: map[string]core.Report{}}
}

// WriteReport stores a copy of r. The returned URL reopens the report in
// the web UI.
func (s *Store) WriteReport(_ context.Context, _ oauth2.TokenSource, r core.Report) (core.SheetRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.Data = r.Data.Clone()
	id := fmt.Sprintf("mem-%d", len(s.order)+1)
	s.reports[id] = r
	s.order = append(s.order, id)
	return core.SheetRef{ID: id, URL: "/reports/open?id=" + id}, nil
}

// ReadReport returns the report stored under id.
func (s *Store) ReadReport(_ context.Context, _ oauth2.TokenSource, id string) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return core.Report{}, ErrNotFound
	}
	r.Data = r.Data.Clone()
	return r, nil
}

// AppendHistory records e and returns a synthetic row reference.
func (s *Store) AppendHistory(_ context.Context, e core.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	return fmt.Sprintf("mem:%d", len(s.history)), nil
}

// History returns the appended entries in order.
func (s *Store) History() []core.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.HistoryEntry(nil), s.history...)
}

// Reports returns the number of stored reports.
func (s *Store) Reports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

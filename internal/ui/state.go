// Package ui holds the application state shown in the browser and builds
// the view models the templates render.
package ui

import (
	"sync"

	"sheetledger/internal/core"
)

// ViewMode selects which view is visible.
type ViewMode string

const (
	ViewRecords ViewMode = "records"
	ViewReport  ViewMode = "report"
)

// State is the single application-state object: view mode, month filter
// and budget. Handlers run concurrently, so every access goes through mu.
type State struct {
	mu     sync.Mutex
	view   ViewMode
	month  string
	budget core.Budget
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	View   ViewMode
	Month  string
	Budget core.Budget
}

func NewState() *State {
	return &State{view: ViewRecords}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{View: s.view, Month: s.month, Budget: s.budget}
}

// Toggle flips between the records and report views and returns the new mode.
func (s *State) Toggle() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == ViewReport {
		s.view = ViewRecords
	} else {
		s.view = ViewReport
	}
	return Snapshot{View: s.view, Month: s.month, Budget: s.budget}
}

// SetMonth sets the month filter; "" selects all months.
func (s *State) SetMonth(month string) (Snapshot, error) {
	if err := core.ValidateMonth(month); err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.month = month
	return Snapshot{View: s.view, Month: s.month, Budget: s.budget}, nil
}

// SetBudget parses value and stores it. Invalid input leaves the previous
// budget in place.
func (s *State) SetBudget(value string) (Snapshot, error) {
	b, err := core.ParseBudget(value)
	if err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = b
	return Snapshot{View: s.view, Month: s.month, Budget: s.budget}, nil
}

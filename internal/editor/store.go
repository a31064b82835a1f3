// Package editor owns the line items a user is editing and hands immutable
// snapshots of them to the computations in core.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"finanzen/internal/core"
)

// MaxDescriptionLength bounds free-text descriptions.
const MaxDescriptionLength = 200

var (
	ErrItemNotFound = errors.New("item not found")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
)

// Store is a mutable set of line items. Every mutation replaces the stored
// FinancialData with a new value so previously returned snapshots stay
// untouched.
type Store struct {
	mu     sync.Mutex
	data   core.FinancialData
	nextID map[core.Category]int64
}

// New returns a store seeded with one zero row per category.
func New() *Store {
	s := &Store{nextID: map[core.Category]int64{}}
	s.data = core.FinancialData{
		Income:         []core.LineItem{{ID: s.newID(core.Income), Description: "Salário Líquido"}},
		Expenses:       []core.LineItem{{ID: s.newID(core.Expenses), Description: "Aluguel"}},
		Debts:          []core.DebtItem{{ID: s.newID(core.Debts), Description: "Cartão de Crédito"}},
		IncomeForecast: core.IncomeForecast{MonthsToForecast: 12},
	}
	return s
}

// newID must be called with mu held (or before the store is shared).
func (s *Store) newID(c core.Category) int64 {
	s.nextID[c]++
	return s.nextID[c]
}

// Snapshot returns a deep copy of the current data.
func (s *Store) Snapshot() core.FinancialData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Add appends a zero row to the category and returns its id.
func (s *Store) Add(c core.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.Clone()
	id := s.newID(c)
	switch c {
	case core.Income:
		next.Income = append(next.Income, core.LineItem{ID: id})
	case core.Expenses:
		next.Expenses = append(next.Expenses, core.LineItem{ID: id})
	case core.Debts:
		next.Debts = append(next.Debts, core.DebtItem{ID: id})
	default:
		return 0, core.ErrUnknownCategory
	}
	s.data = next
	return id, nil
}

// Remove deletes a row by id. Removing the last row of a category is a
// no-op so each category always keeps one row.
func (s *Store) Remove(c core.Category, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Len(c) <= 1 {
		if c != core.Income && c != core.Expenses && c != core.Debts {
			return core.ErrUnknownCategory
		}
		return nil
	}

	next := s.data.Clone()
	found := false
	switch c {
	case core.Income:
		next.Income, found = removeLine(next.Income, id)
	case core.Expenses:
		next.Expenses, found = removeLine(next.Expenses, id)
	case core.Debts:
		next.Debts, found = removeDebt(next.Debts, id)
	}
	if !found {
		return ErrItemNotFound
	}
	s.data = next
	return nil
}

func removeLine(items []core.LineItem, id int64) ([]core.LineItem, bool) {
	for i, it := range items {
		if it.ID == id {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

func removeDebt(items []core.DebtItem, id int64) ([]core.DebtItem, bool) {
	for i, it := range items {
		if it.ID == id {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

// Update sets one field of a row from raw form input. Numeric input is
// normalised to a non-negative value, 0 when unparsable.
func (s *Store) Update(c core.Category, id int64, field, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.Clone()
	switch c {
	case core.Income, core.Expenses:
		items := next.Income
		if c == core.Expenses {
			items = next.Expenses
		}
		idx := indexLine(items, id)
		if idx < 0 {
			return ErrItemNotFound
		}
		if err := setLineField(&items[idx], field, raw); err != nil {
			return err
		}
	case core.Debts:
		idx := indexDebt(next.Debts, id)
		if idx < 0 {
			return ErrItemNotFound
		}
		if err := setDebtField(&next.Debts[idx], field, raw); err != nil {
			return err
		}
	default:
		return core.ErrUnknownCategory
	}
	s.data = next
	return nil
}

func indexLine(items []core.LineItem, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func indexDebt(items []core.DebtItem, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func setLineField(it *core.LineItem, field, raw string) error {
	switch field {
	case "description":
		it.Description = cleanDescription(raw)
	case "amount":
		it.Amount = core.ParseAmount(raw)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func setDebtField(d *core.DebtItem, field, raw string) error {
	switch field {
	case "description":
		d.Description = cleanDescription(raw)
	case "amount":
		d.Amount = core.ParseAmount(raw)
	case "loanAmount":
		d.LoanAmount = core.ParseAmount(raw)
	case "outstandingBalance":
		d.OutstandingBalance = core.ParseAmount(raw)
	case "totalInstallments":
		d.TotalInstallments = core.ParseCount(raw)
	case "monthlyInterestRate":
		d.MonthlyInterestRate = core.ParseAmount(raw)
	case "annualInterestRate":
		d.AnnualInterestRate = core.ParseAmount(raw)
	case "startDate", "endDate":
		v := strings.TrimSpace(raw)
		if !core.ValidDate(v) {
			return ErrInvalidDate
		}
		if field == "startDate" {
			d.StartDate = v
		} else {
			d.EndDate = v
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func cleanDescription(raw string) string {
	v := strings.TrimSpace(raw)
	if r := []rune(v); len(r) > MaxDescriptionLength {
		v = string(r[:MaxDescriptionLength])
	}
	return v
}

// SetForecast replaces the income forecast from raw form input.
func (s *Store) SetForecast(growthRaw, monthsRaw string) core.IncomeForecast {
	f := core.IncomeForecast{
		GrowthRate:       core.ParseAmount(growthRaw),
		MonthsToForecast: core.ClampMonths(core.ParseCount(monthsRaw)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.Clone()
	next.IncomeForecast = f
	s.data = next
	return f
}

// Replace loads data read from elsewhere. Empty categories get one zero row,
// id counters move past the largest loaded id and the forecast is normalised
// as SetForecast would.
func (s *Store) Replace(data core.FinancialData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := data.Clone()
	for _, it := range next.Income {
		s.bump(core.Income, it.ID)
	}
	for _, it := range next.Expenses {
		s.bump(core.Expenses, it.ID)
	}
	for _, it := range next.Debts {
		s.bump(core.Debts, it.ID)
	}
	if len(next.Income) == 0 {
		next.Income = []core.LineItem{{ID: s.newID(core.Income)}}
	}
	if len(next.Expenses) == 0 {
		next.Expenses = []core.LineItem{{ID: s.newID(core.Expenses)}}
	}
	if len(next.Debts) == 0 {
		next.Debts = []core.DebtItem{{ID: s.newID(core.Debts)}}
	}
	next.IncomeForecast.MonthsToForecast = core.ClampMonths(next.IncomeForecast.MonthsToForecast)
	if next.IncomeForecast.GrowthRate < 0 {
		next.IncomeForecast.GrowthRate = 0
	}
	s.data = next
}

func (s *Store) bump(c core.Category, id int64) {
	if id > s.nextID[c] {
		s.nextID[c] = id
	}
}

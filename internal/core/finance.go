package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   Category = "income"
	Expenses Category = "expenses"
	Debts    Category = "debts"
)

type (
	// Category identifies one of the three line-item collections.
	Category string

	LineItem struct {
		ID          int64   `json:"id"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
	}

	// DebtItem is a LineItem whose Amount is the monthly installment.
	// Interest rates are informative only and never cross-checked.
	DebtItem struct {
		ID                  int64   `json:"id"`
		Description         string  `json:"description"`
		Amount              float64 `json:"amount"`
		LoanAmount          float64 `json:"loanAmount"`
		OutstandingBalance  float64 `json:"outstandingBalance"`
		TotalInstallments   int     `json:"totalInstallments"`
		MonthlyInterestRate float64 `json:"monthlyInterestRate"`
		AnnualInterestRate  float64 `json:"annualInterestRate"`
		StartDate           string  `json:"startDate"`
		EndDate             string  `json:"endDate"`
	}

	IncomeForecast struct {
		GrowthRate       float64 `json:"growthRate"`
		MonthsToForecast int     `json:"monthsToForecast"`
	}

	// FinancialData is the snapshot handed to the aggregator, the projector
	// and the narrative renderer. Item order is display order only.
	FinancialData struct {
		Income         []LineItem     `json:"income"`
		Expenses       []LineItem     `json:"expenses"`
		Debts          []DebtItem     `json:"debts"`
		IncomeForecast IncomeForecast `json:"incomeForecast"`
	}

	// Report is what gets written to a spreadsheet when the user saves.
	Report struct {
		Title     string
		CreatedAt time.Time
		Data      FinancialData
		Totals    Totals
		Diagnosis string
	}

	// SheetRef points to a spreadsheet created for a report.
	SheetRef struct {
		ID  string
		URL string
	}

	// HistoryEntry is one row of the shared analysis history sheet.
	HistoryEntry struct {
		AnalysisID       int64
		CreatedAt        time.Time
		UserEmail        string
		Totals           Totals
		GrowthRate       float64
		MonthsToForecast int
	}
)

var ErrUnknownCategory = errors.New("unknown category")

// Categories lists the categories in display order.
func Categories() []Category {
	return []Category{Income, Expenses, Debts}
}

// ParseCategory maps a form value to a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expenses:
		return Expenses, nil
	case Debts:
		return Debts, nil
	default:
		return "", ErrUnknownCategory
	}
}

// Label returns the pt-BR title used in the UI and in spreadsheet tabs.
func (c Category) Label() string {
	switch c {
	case Income:
		return "Rendas"
	case Expenses:
		return "Gastos Essenciais"
	case Debts:
		return "Dívidas"
	default:
		return string(c)
	}
}

// Line returns the debt as a plain line item.
func (d DebtItem) Line() LineItem {
	return LineItem{ID: d.ID, Description: d.Description, Amount: d.Amount}
}

// Len returns the number of items in a category.
func (f FinancialData) Len(c Category) int {
	switch c {
	case Income:
		return len(f.Income)
	case Expenses:
		return len(f.Expenses)
	case Debts:
		return len(f.Debts)
	default:
		return 0
	}
}

// Clone returns a deep copy so callers never share backing arrays.
func (f FinancialData) Clone() FinancialData {
	out := FinancialData{IncomeForecast: f.IncomeForecast}
	if f.Income != nil {
		out.Income = append([]LineItem(nil), f.Income...)
	}
	if f.Expenses != nil {
		out.Expenses = append([]LineItem(nil), f.Expenses...)
	}
	if f.Debts != nil {
		out.Debts = append([]DebtItem(nil), f.Debts...)
	}
	return out
}

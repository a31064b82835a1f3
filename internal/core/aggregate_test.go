package core

import (
	"math/rand"
	"testing"
)

func sampleData() FinancialData {
	return FinancialData{
		Income: []LineItem{
			{ID: 1, Description: "Salário Líquido", Amount: 5000},
		},
		Expenses: []LineItem{
			{ID: 1, Description: "Aluguel", Amount: 1500},
		},
		Debts: []DebtItem{
			{ID: 1, Description: "Cartão de Crédito", Amount: 300, LoanAmount: 4000, OutstandingBalance: 2500},
		},
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		data     FinancialData
		income   float64
		expenses float64
		capacity float64
	}{
		{
			name:     "single item per category",
			data:     sampleData(),
			income:   5000,
			expenses: 1800,
			capacity: 3200,
		},
		{
			name: "negative capacity",
			data: FinancialData{
				Income:   []LineItem{{ID: 1, Amount: 1000}},
				Expenses: []LineItem{{ID: 1, Amount: 900}, {ID: 2, Amount: 200}},
				Debts:    []DebtItem{{ID: 1, Amount: 150}},
			},
			income:   1000,
			expenses: 1250,
			capacity: -250,
		},
		{
			name:     "empty snapshot",
			data:     FinancialData{},
			income:   0,
			expenses: 0,
			capacity: 0,
		},
		{
			name: "balances and principals are ignored",
			data: FinancialData{
				Income: []LineItem{{ID: 1, Amount: 3000}},
				Debts:  []DebtItem{{ID: 1, Amount: 0, LoanAmount: 90000, OutstandingBalance: 80000}},
			},
			income:   3000,
			expenses: 0,
			capacity: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.data)
			if got.TotalIncome != tt.income {
				t.Errorf("TotalIncome = %v, want %v", got.TotalIncome, tt.income)
			}
			if got.TotalExpenses != tt.expenses {
				t.Errorf("TotalExpenses = %v, want %v", got.TotalExpenses, tt.expenses)
			}
			if got.PaymentCapacity != tt.capacity {
				t.Errorf("PaymentCapacity = %v, want %v", got.PaymentCapacity, tt.capacity)
			}
			if got.PaymentCapacity != got.TotalIncome-got.TotalExpenses {
				t.Errorf("capacity %v != income %v - expenses %v", got.PaymentCapacity, got.TotalIncome, got.TotalExpenses)
			}
			if got.TotalExpenses != got.EssentialExpenses+got.DebtPayments {
				t.Errorf("expenses %v != essential %v + debts %v", got.TotalExpenses, got.EssentialExpenses, got.DebtPayments)
			}
		})
	}
}

func TestSummarizeOrderInvariance(t *testing.T) {
	// Integral amounts keep float addition exact regardless of order.
	data := FinancialData{}
	for i := 1; i <= 20; i++ {
		data.Income = append(data.Income, LineItem{ID: int64(i), Amount: float64(i * 100)})
		data.Expenses = append(data.Expenses, LineItem{ID: int64(i), Amount: float64(i * 7)})
		data.Debts = append(data.Debts, DebtItem{ID: int64(i), Amount: float64(i * 3)})
	}
	want := Summarize(data)

	r := rand.New(rand.NewSource(42))
	for n := 0; n < 10; n++ {
		shuffled := data.Clone()
		r.Shuffle(len(shuffled.Income), func(i, j int) {
			shuffled.Income[i], shuffled.Income[j] = shuffled.Income[j], shuffled.Income[i]
		})
		r.Shuffle(len(shuffled.Expenses), func(i, j int) {
			shuffled.Expenses[i], shuffled.Expenses[j] = shuffled.Expenses[j], shuffled.Expenses[i]
		})
		r.Shuffle(len(shuffled.Debts), func(i, j int) {
			shuffled.Debts[i], shuffled.Debts[j] = shuffled.Debts[j], shuffled.Debts[i]
		})
		if got := Summarize(shuffled); got != want {
			t.Fatalf("permutation %d: got %+v, want %+v", n, got, want)
		}
	}
}

func TestSummarizeZeroItemNeutral(t *testing.T) {
	data := sampleData()
	want := Summarize(data)

	data.Income = append(data.Income, LineItem{ID: 2})
	data.Expenses = append(data.Expenses, LineItem{ID: 2})
	data.Debts = append(data.Debts, DebtItem{ID: 2, LoanAmount: 1000})

	if got := Summarize(data); got != want {
		t.Fatalf("zero items changed totals: got %+v, want %+v", got, want)
	}
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	data := sampleData()
	before := data.Clone()
	Summarize(data)
	if data.Income[0] != before.Income[0] || data.Expenses[0] != before.Expenses[0] || data.Debts[0] != before.Debts[0] {
		t.Fatal("Summarize mutated its input")
	}
}

func TestTotalsHelpers(t *testing.T) {
	tot := Summarize(sampleData())
	if tot.Deficit() {
		t.Error("expected no deficit")
	}
	if got := tot.ExpenseRatio(); got != 0.36 {
		t.Errorf("ExpenseRatio = %v, want 0.36", got)
	}
	if got := (Totals{}).ExpenseRatio(); got != 0 {
		t.Errorf("ExpenseRatio without income = %v, want 0", got)
	}
	if got := Sum([]LineItem{{Amount: 1}, {Amount: 2.5}}); got != 3.5 {
		t.Errorf("Sum = %v, want 3.5", got)
	}
}

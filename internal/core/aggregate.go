package core

// Totals are the aggregate figures derived from a FinancialData snapshot.
// EssentialExpenses and DebtPayments are the two addends of TotalExpenses.
type Totals struct {
	TotalIncome       float64 `json:"totalIncome"`
	EssentialExpenses float64 `json:"essentialExpenses"`
	DebtPayments      float64 `json:"debtPayments"`
	TotalExpenses     float64 `json:"totalExpenses"`
	PaymentCapacity   float64 `json:"paymentCapacity"`
}

// Summarize computes the totals of a snapshot. Debts contribute only their
// installment; balances and principals are never summed. The result of a
// negative capacity is meaningful and returned as is.
func Summarize(data FinancialData) Totals {
	var t Totals
	for _, it := range data.Income {
		t.TotalIncome += it.Amount
	}
	for _, it := range data.Expenses {
		t.EssentialExpenses += it.Amount
	}
	for _, d := range data.Debts {
		t.DebtPayments += d.Amount
	}
	t.TotalExpenses = t.EssentialExpenses + t.DebtPayments
	t.PaymentCapacity = t.TotalIncome - t.TotalExpenses
	return t
}

// Sum adds the amounts of a category.
func Sum(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

// Deficit reports whether expenses exceed income.
func (t Totals) Deficit() bool {
	return t.PaymentCapacity < 0
}

// ExpenseRatio is the share of income committed to expenses, 0 when there is
// no income.
func (t Totals) ExpenseRatio() float64 {
	if t.TotalIncome <= 0 {
		return 0
	}
	return t.TotalExpenses / t.TotalIncome
}

package core

import "time"

// RemainingInstallments estimates how many monthly installments are still due
// at now, counting whole months until EndDate. Without a usable EndDate it
// falls back to TotalInstallments. When TotalInstallments is known the result
// never exceeds it.
func (d DebtItem) RemainingInstallments(now time.Time) int {
	end, err := time.Parse(DateLayout, d.EndDate)
	if err != nil {
		return d.TotalInstallments
	}
	months := monthsBetween(now, end)
	if months < 0 {
		months = 0
	}
	if d.TotalInstallments > 0 && months > d.TotalInstallments {
		months = d.TotalInstallments
	}
	return months
}

// Active reports whether the debt still has installments due at now.
func (d DebtItem) Active(now time.Time) bool {
	if d.EndDate == "" {
		return d.Amount > 0
	}
	return d.RemainingInstallments(now) > 0
}

// monthsBetween counts the installments due after from up to and including
// the month of to. A due day later in the month than from counts as due.
func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() >= from.Day() {
		months++
	}
	return months
}

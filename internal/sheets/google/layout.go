package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"finanzen/internal/core"

	gsheet "google.golang.org/api/sheets/v4"
)

// Tab names of a report spreadsheet.
const (
	SummarySheet  = "Resumo"
	IncomeSheet   = "Rendas"
	ExpensesSheet = "Gastos"
	DebtsSheet    = "Dívidas"

	reportTitlePrefix = "Análise FinanZen - "
)

var (
	lineHeader = []any{"Descrição", "Valor (R$)"}
	debtHeader = []any{
		"Descrição", "Valor do Empréstimo", "Saldo Devedor", "Valor da Parcela",
		"CET a.m. (%)", "CET a.a. (%)", "Total de Parcelas", "Data de Início", "Data Final",
	}
)

// Labels of the key/value rows in the summary tab.
const (
	labelCreated    = "Análise FinanZen"
	labelIncome     = "Renda Total"
	labelEssential  = "Gastos Essenciais"
	labelDebts      = "Parcelas de Dívidas"
	labelExpenses   = "Despesas Totais"
	labelCapacity   = "Capacidade de Pagamento"
	labelGrowth     = "Crescimento Anual (%)"
	labelMonths     = "Meses de Projeção"
	labelDiagnosis  = "Diagnóstico"
	createdAtLayout = "02/01/2006 15:04"
)

// ReportTitle names the spreadsheet created for r.
func ReportTitle(r core.Report) string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return reportTitlePrefix + r.CreatedAt.Format("02/01/2006")
}

// StripMarkdownHeadings removes heading markers, which have no meaning in a
// spreadsheet cell.
func StripMarkdownHeadings(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		trimmed := strings.TrimLeft(l, " ")
		if strings.HasPrefix(trimmed, "#") {
			lines[i] = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return strings.Join(lines, "\n")
}

// reportRanges lays out r as one value range per tab.
func reportRanges(r core.Report) []*gsheet.ValueRange {
	f := r.Data.IncomeForecast
	summary := [][]any{
		{labelCreated, r.CreatedAt.Format(createdAtLayout)},
		{labelIncome, r.Totals.TotalIncome},
		{labelEssential, r.Totals.EssentialExpenses},
		{labelDebts, r.Totals.DebtPayments},
		{labelExpenses, r.Totals.TotalExpenses},
		{labelCapacity, r.Totals.PaymentCapacity},
		{labelGrowth, f.GrowthRate},
		{labelMonths, f.MonthsToForecast},
		{},
		{labelDiagnosis},
		{StripMarkdownHeadings(r.Diagnosis)},
	}

	return []*gsheet.ValueRange{
		{Range: SummarySheet + "!A1", Values: summary},
		{Range: IncomeSheet + "!A1", Values: lineRows(r.Data.Income)},
		{Range: ExpensesSheet + "!A1", Values: lineRows(r.Data.Expenses)},
		{Range: DebtsSheet + "!A1", Values: debtRows(r.Data.Debts)},
	}
}

func lineRows(items []core.LineItem) [][]any {
	rows := [][]any{lineHeader}
	for _, it := range items {
		rows = append(rows, []any{it.Description, it.Amount})
	}
	return rows
}

func debtRows(items []core.DebtItem) [][]any {
	rows := [][]any{debtHeader}
	for _, d := range items {
		rows = append(rows, []any{
			d.Description, d.LoanAmount, d.OutstandingBalance, d.Amount,
			d.MonthlyInterestRate, d.AnnualInterestRate, d.TotalInstallments,
			d.StartDate, d.EndDate,
		})
	}
	return rows
}

// readRanges are the ranges fetched when reading a report back.
func readRanges() []string {
	return []string{
		SummarySheet + "!A1:B12",
		IncomeSheet + "!A:B",
		ExpensesSheet + "!A:B",
		DebtsSheet + "!A:I",
	}
}

// parseReport rebuilds a report from the values of readRanges, in order.
// Totals are recomputed from the items rather than trusted from the sheet.
func parseReport(ranges [][][]any) (core.Report, error) {
	if len(ranges) != 4 {
		return core.Report{}, fmt.Errorf("expected 4 ranges, got %d", len(ranges))
	}
	var r core.Report
	summary := ranges[0]
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		switch cellString(row[0]) {
		case labelCreated:
			if len(row) > 1 {
				if t, err := time.ParseInLocation(createdAtLayout, cellString(row[1]), time.Local); err == nil {
					r.CreatedAt = t
				}
			}
		case labelGrowth:
			r.Data.IncomeForecast.GrowthRate = cellAmount(row, 1)
		case labelMonths:
			r.Data.IncomeForecast.MonthsToForecast = cellCount(row, 1, core.MaxForecastMonths)
		case labelDiagnosis:
			if i+1 < len(summary) && len(summary[i+1]) > 0 {
				r.Diagnosis = cellString(summary[i+1][0])
			}
		}
	}

	r.Data.Income = parseLines(ranges[1])
	r.Data.Expenses = parseLines(ranges[2])
	r.Data.Debts = parseDebts(ranges[3])
	r.Totals = core.Summarize(r.Data)
	return r, nil
}

func parseLines(rows [][]any) []core.LineItem {
	var out []core.LineItem
	for i, row := range rows {
		if i == 0 && isHeader(row, lineHeader) {
			continue
		}
		desc := cellString(cellAt(row, 0))
		if desc == "" && cellString(cellAt(row, 1)) == "" {
			continue
		}
		out = append(out, core.LineItem{
			ID:          int64(len(out) + 1),
			Description: desc,
			Amount:      cellAmount(row, 1),
		})
	}
	return out
}

func parseDebts(rows [][]any) []core.DebtItem {
	var out []core.DebtItem
	for i, row := range rows {
		if i == 0 && isHeader(row, debtHeader) {
			continue
		}
		empty := true
		for _, c := range row {
			if cellString(c) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		out = append(out, core.DebtItem{
			ID:                  int64(len(out) + 1),
			Description:         cellString(cellAt(row, 0)),
			LoanAmount:          cellAmount(row, 1),
			OutstandingBalance:  cellAmount(row, 2),
			Amount:              cellAmount(row, 3),
			MonthlyInterestRate: cellAmount(row, 4),
			AnnualInterestRate:  cellAmount(row, 5),
			TotalInstallments:   cellCount(row, 6, math.MaxInt32),
			StartDate:           parseSheetDate(cellString(cellAt(row, 7))),
			EndDate:             parseSheetDate(cellString(cellAt(row, 8))),
		})
	}
	return out
}

func isHeader(row, header []any) bool {
	return len(row) > 0 && cellString(row[0]) == header[0]
}

func cellAt(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// cellAmount reads a non-negative number from row[idx]. Unformatted reads
// return JSON numbers; formatted ones return pt-BR strings.
func cellAmount(row []any, idx int) float64 {
	switch x := cellAt(row, idx).(type) {
	case float64:
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case string:
		return core.ParseAmount(x)
	default:
		return 0
	}
}

// cellCount reads a whole number no larger than limit. The bound is applied
// before the conversion so oversized cells cannot overflow int.
func cellCount(row []any, idx, limit int) int {
	v := cellAmount(row, idx)
	if v > float64(limit) {
		return limit
	}
	return int(v)
}

// parseSheetDate accepts ISO dates and pt-BR formatted ones and returns the
// ISO form, or "" when s is not a date.
func parseSheetDate(s string) string {
	for _, layout := range []string{core.DateLayout, "02/01/2006", "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(core.DateLayout)
		}
	}
	return ""
}

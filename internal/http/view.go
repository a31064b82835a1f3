package http

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"finanzen/internal/core"
	"finanzen/internal/session"
)

// minBarWidth keeps tiny non-zero values visible.
const minBarWidth = 2

var monthAbbrev = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// markdown renders diagnoses. Raw HTML in the source is omitted since the
// unsafe renderer option is not set.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Table))

type summaryCard struct {
	Label string
	Value string
	Class string
}

type bar struct {
	Label string
	Value string
	Width int
	Class string
}

type projectionRow struct {
	Month  string
	Amount string
	Width  int
}

type summaryView struct {
	Income    string
	Essential string
	Debts     string
	Total     string
	Capacity  string
	Class     string

	// Set when the forecast yields a projection.
	Projected      string
	ProjectedMonth string
}

type dashboardView struct {
	Cards      []summaryCard
	Bars       []bar
	Projection []projectionRow
	Growth     string
	Diagnosis  template.HTML
	CreatedAt  string
	SheetURL   string
	ReportsOn  bool
	LoggedIn   bool
	LoginOn    bool
}

// monthLabel returns the pt-BR label of the month offset months after now,
// e.g. "jan/2026".
func monthLabel(now time.Time, offset int) string {
	t := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
	return monthAbbrev[t.Month()-1] + "/" + strconv.Itoa(t.Year())
}

// barWidth returns v as a rounded percentage of max, at least minBarWidth
// when v is positive and at most 100.
func barWidth(v, max float64) int {
	if max <= 0 || v <= 0 {
		return 0
	}
	w := int(v/max*100 + 0.5)
	if w < minBarWidth {
		w = minBarWidth
	}
	if w > 100 {
		w = 100
	}
	return w
}

func capacityClass(t core.Totals) string {
	if t.Deficit() {
		return "negative"
	}
	return "positive"
}

func renderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func newSummaryView(t core.Totals) summaryView {
	return summaryView{
		Income:    core.FormatBRL(t.TotalIncome),
		Essential: core.FormatBRL(t.EssentialExpenses),
		Debts:     core.FormatBRL(t.DebtPayments),
		Total:     core.FormatBRL(t.TotalExpenses),
		Capacity:  core.FormatBRL(t.PaymentCapacity),
		Class:     capacityClass(t),
	}
}

// summaryFor is the live summary shown next to the form.
func summaryFor(data core.FinancialData, now time.Time) summaryView {
	t := core.Summarize(data)
	v := newSummaryView(t)
	if points := core.ProjectIncome(t.TotalIncome, data.IncomeForecast); len(points) > 0 {
		last := points[len(points)-1]
		v.Projected = core.FormatBRL(last.ProjectedIncome)
		v.ProjectedMonth = monthLabel(now, last.MonthIndex)
	}
	return v
}

func projectionRows(points []core.ProjectionPoint, now time.Time) []projectionRow {
	var max float64
	for _, p := range points {
		if p.ProjectedIncome > max {
			max = p.ProjectedIncome
		}
	}
	rows := make([]projectionRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, projectionRow{
			Month:  monthLabel(now, p.MonthIndex),
			Amount: core.FormatBRL(p.ProjectedIncome),
			Width:  barWidth(p.ProjectedIncome, max),
		})
	}
	return rows
}

func newDashboardView(a *session.Analysis, now time.Time) (dashboardView, error) {
	t := a.Totals
	v := dashboardView{
		Cards: []summaryCard{
			{Label: "Renda Total", Value: core.FormatBRL(t.TotalIncome), Class: "income"},
			{Label: "Despesas Totais", Value: core.FormatBRL(t.TotalExpenses), Class: "expenses"},
			{Label: "Capacidade de Pagamento", Value: core.FormatBRL(t.PaymentCapacity), Class: capacityClass(t)},
		},
		Projection: projectionRows(a.Projection, now),
		Growth:     core.FormatNumber(a.Data.IncomeForecast.GrowthRate, 1),
		CreatedAt:  a.CreatedAt.Format("02/01/2006 15:04"),
		SheetURL:   a.SheetURL,
	}

	max := t.TotalIncome
	if t.TotalExpenses > max {
		max = t.TotalExpenses
	}
	v.Bars = []bar{
		{Label: "Renda", Value: core.FormatBRL(t.TotalIncome), Width: barWidth(t.TotalIncome, max), Class: "income"},
		{Label: "Despesas", Value: core.FormatBRL(t.TotalExpenses), Width: barWidth(t.TotalExpenses, max), Class: "expenses"},
		{Label: "Gastos Essenciais", Value: core.FormatBRL(t.EssentialExpenses), Width: barWidth(t.EssentialExpenses, max), Class: "essential"},
		{Label: "Parcelas de Dívidas", Value: core.FormatBRL(t.DebtPayments), Width: barWidth(t.DebtPayments, max), Class: "debts"},
	}

	html, err := renderMarkdown(a.Diagnosis)
	if err != nil {
		return dashboardView{}, err
	}
	v.Diagnosis = html
	return v, nil
}

// inputValue renders an amount for an editable field; zero stays empty so
// the placeholder shows.
func inputValue(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func countValue(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

type lineRow struct {
	ID          int64
	Description string
	Amount      string
}

type debtRow struct {
	ID                  int64
	Description         string
	Amount              string
	LoanAmount          string
	OutstandingBalance  string
	TotalInstallments   string
	MonthlyInterestRate string
	AnnualInterestRate  string
	StartDate           string
	EndDate             string
	Remaining           int
}

type categoryView struct {
	Key       string
	Label     string
	Lines     []lineRow
	Debts     []debtRow
	CanRemove bool
}

type workspaceView struct {
	Categories []categoryView
	GrowthRate string
	Months     string
	MaxMonths  int
	Summary    summaryView
}

func newWorkspaceView(data core.FinancialData, now time.Time) workspaceView {
	v := workspaceView{
		GrowthRate: inputValue(data.IncomeForecast.GrowthRate),
		Months:     strconv.Itoa(data.IncomeForecast.MonthsToForecast),
		MaxMonths:  core.MaxForecastMonths,
		Summary:    summaryFor(data, now),
	}
	for _, c := range core.Categories() {
		cv := categoryView{Key: string(c), Label: c.Label(), CanRemove: data.Len(c) > 1}
		switch c {
		case core.Income:
			cv.Lines = lineRows(data.Income)
		case core.Expenses:
			cv.Lines = lineRows(data.Expenses)
		case core.Debts:
			for _, d := range data.Debts {
				cv.Debts = append(cv.Debts, debtRow{
					ID:                  d.ID,
					Description:         d.Description,
					Amount:              inputValue(d.Amount),
					LoanAmount:          inputValue(d.LoanAmount),
					OutstandingBalance:  inputValue(d.OutstandingBalance),
					TotalInstallments:   countValue(d.TotalInstallments),
					MonthlyInterestRate: inputValue(d.MonthlyInterestRate),
					AnnualInterestRate:  inputValue(d.AnnualInterestRate),
					StartDate:           d.StartDate,
					EndDate:             d.EndDate,
					Remaining:           d.RemainingInstallments(now),
				})
			}
		}
		v.Categories = append(v.Categories, cv)
	}
	return v
}

func lineRows(items []core.LineItem) []lineRow {
	rows := make([]lineRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, lineRow{ID: it.ID, Description: it.Description, Amount: inputValue(it.Amount)})
	}
	return rows
}

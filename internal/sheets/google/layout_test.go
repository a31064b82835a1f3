package google

import (
	"math"
	"testing"

	"finanzen/internal/core"
)

func TestStripMarkdownHeadings(t *testing.T) {
	in := "### Panorama Geral\nTexto com # no meio.\n  ## Pontos\n- item"
	want := "Panorama Geral\nTexto com # no meio.\nPontos\n- item"
	if got := StripMarkdownHeadings(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReportTitle(t *testing.T) {
	r := sampleReport()
	if got := ReportTitle(r); got != "Análise FinanZen - 19/10/2026" {
		t.Errorf("ReportTitle = %q", got)
	}
	r.Title = "Minha análise"
	if got := ReportTitle(r); got != "Minha análise" {
		t.Errorf("custom ReportTitle = %q", got)
	}
}

func TestReportRangesLayout(t *testing.T) {
	ranges := reportRanges(sampleReport())
	if len(ranges) != 4 {
		t.Fatalf("got %d ranges", len(ranges))
	}
	want := []string{"Resumo!A1", "Rendas!A1", "Gastos!A1", "Dívidas!A1"}
	for i, vr := range ranges {
		if vr.Range != want[i] {
			t.Errorf("range %d = %q, want %q", i, vr.Range, want[i])
		}
	}
	if len(ranges[1].Values) != 3 || ranges[1].Values[0][0] != "Descrição" {
		t.Errorf("income rows = %v", ranges[1].Values)
	}
	if len(ranges[3].Values[0]) != 9 || len(ranges[3].Values[1]) != 9 {
		t.Errorf("debt rows must have 9 columns: %v", ranges[3].Values)
	}
}

func TestParseReportTolerance(t *testing.T) {
	ranges := [][][]any{
		{{"Meses de Projeção", "12"}, {"Crescimento Anual (%)", "7,5"}},
		{{"Descrição", "Valor (R$)"}, {"Salário", "5.000,00"}, {}, {"", ""}, {"Sem valor"}},
		nil,
		{{"Descrição"}, {"Carro", 20000.0, 15000.0, 900.0, -1.0, "x", 48.0, "10/01/2026", "amanhã"}},
	}
	r, err := parseReport(ranges)
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if r.Data.IncomeForecast != (core.IncomeForecast{GrowthRate: 7.5, MonthsToForecast: 12}) {
		t.Errorf("forecast = %+v", r.Data.IncomeForecast)
	}
	if len(r.Data.Income) != 2 || r.Data.Income[0].Amount != 5000 || r.Data.Income[1].Amount != 0 {
		t.Errorf("income = %+v", r.Data.Income)
	}
	if len(r.Data.Expenses) != 0 {
		t.Errorf("expenses = %+v", r.Data.Expenses)
	}
	d := r.Data.Debts[0]
	if d.Amount != 900 || d.MonthlyInterestRate != 0 || d.AnnualInterestRate != 0 || d.TotalInstallments != 48 {
		t.Errorf("debt numbers = %+v", d)
	}
	if d.StartDate != "2026-01-10" || d.EndDate != "" {
		t.Errorf("debt dates = %q %q", d.StartDate, d.EndDate)
	}
	if r.Totals.TotalIncome != 5000 || r.Totals.TotalExpenses != 900 {
		t.Errorf("totals = %+v", r.Totals)
	}

	huge, err := parseReport([][][]any{
		{{"Meses de Projeção", 1e9}, {"Crescimento Anual (%)", 5.0}},
		nil,
		nil,
		{{"Descrição"}, {"Casa", 1.0, 1.0, 1.0, 0.0, 0.0, 1e30}},
	})
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if got := huge.Data.IncomeForecast.MonthsToForecast; got != core.MaxForecastMonths {
		t.Errorf("months = %d, want %d", got, core.MaxForecastMonths)
	}
	if got := huge.Data.Debts[0].TotalInstallments; got != math.MaxInt32 {
		t.Errorf("installments = %d, want %d", got, math.MaxInt32)
	}

	if _, err := parseReport(nil); err == nil {
		t.Error("expected error for missing ranges")
	}
}

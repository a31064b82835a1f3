package narrative

import (
	"strings"
	"text/template"
	"time"

	"finanzen/internal/core"
)

// SystemInstruction sets the assistant persona for every diagnosis.
const SystemInstruction = `Você é "FinanZen", um consultor financeiro pessoal empático e direto.
Explique a situação financeira do usuário em linguagem simples, sem jargões,
com foco em ações concretas que caibam na realidade dele. Nunca recomende
produtos financeiros específicos de instituições.`

// PromptInput is everything the prompt is rendered from. Now dates the
// remaining installment estimate of each debt.
type PromptInput struct {
	Data       core.FinancialData
	Totals     core.Totals
	Projection []core.ProjectionPoint
	Now        time.Time
}

type promptView struct {
	Income      []core.LineItem
	Expenses    []core.LineItem
	Debts       []debtView
	Totals      core.Totals
	Forecast    core.IncomeForecast
	MonthlyRate float64
	Projected   float64
	HasForecast bool
}

type debtView struct {
	core.DebtItem
	Remaining int
}

var promptTmpl = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"brl":   core.FormatBRL,
	"pct":   func(v float64) string { return core.FormatNumber(v, 2) },
	"pct4":  func(v float64) string { return core.FormatNumber(v, 4) },
	"date":  core.FormatDate,
	"label": label,
}).Parse(`Analise a situação financeira mensal abaixo e escreva um diagnóstico em markdown, em português do Brasil.

### Rendas
{{- range .Income}}
- {{label .Description}}: {{brl .Amount}}
{{- else}}
- Nenhuma renda informada.
{{- end}}

### Gastos Essenciais
{{- range .Expenses}}
- {{label .Description}}: {{brl .Amount}}
{{- else}}
- Nenhum gasto essencial informado.
{{- end}}

### Dívidas
{{- range .Debts}}
- {{label .Description}}
  - Valor do Empréstimo: {{brl .LoanAmount}}
  - Saldo Devedor: {{brl .OutstandingBalance}}
  - Valor da Parcela: {{brl .Amount}}
  - Juros (CET): {{pct .MonthlyInterestRate}}% a.m. | {{pct .AnnualInterestRate}}% a.a.
{{- if or .StartDate .EndDate}}
  - Duração: de {{date .StartDate}} até {{date .EndDate}}
{{- end}}
  - Total de Parcelas: {{.TotalInstallments}}
{{- if .EndDate}}
  - Parcelas Restantes (estimativa): {{.Remaining}}
{{- end}}
{{- else}}
- Nenhuma dívida informada.
{{- end}}

### Resumo
- Renda Total: {{brl .Totals.TotalIncome}}
- Gastos Essenciais: {{brl .Totals.EssentialExpenses}}
- Parcelas de Dívidas: {{brl .Totals.DebtPayments}}
- Despesas Totais: {{brl .Totals.TotalExpenses}}
- Capacidade de Pagamento: {{brl .Totals.PaymentCapacity}}
{{- if .HasForecast}}

### Projeção de Renda
- Crescimento anual esperado: {{pct .Forecast.GrowthRate}}% (equivalente a {{pct4 .MonthlyRate}}% ao mês)
- Renda projetada em {{.Forecast.MonthsToForecast}} meses: {{brl .Projected}}
{{- end}}

Organize a resposta exatamente nestas três seções, usando estes títulos:
### Panorama Geral
### Pontos de Atenção
### Recomendações Práticas
`))

// RenderPrompt renders the diagnosis prompt. Lines with zero amounts are left
// out of the item lists; the totals always come from in.Totals.
func RenderPrompt(in PromptInput) (string, error) {
	v := promptView{
		Totals:   in.Totals,
		Forecast: in.Data.IncomeForecast,
	}
	for _, it := range in.Data.Income {
		if it.Amount > 0 {
			v.Income = append(v.Income, it)
		}
	}
	for _, it := range in.Data.Expenses {
		if it.Amount > 0 {
			v.Expenses = append(v.Expenses, it)
		}
	}
	for _, d := range in.Data.Debts {
		if d.LoanAmount > 0 || d.Amount > 0 {
			v.Debts = append(v.Debts, debtView{DebtItem: d, Remaining: d.RemainingInstallments(in.Now)})
		}
	}
	if n := len(in.Projection); n > 0 {
		v.HasForecast = true
		v.Projected = in.Projection[n-1].ProjectedIncome
		v.MonthlyRate = core.MonthlyGrowthRate(in.Data.IncomeForecast.GrowthRate) * 100
	}

	var b strings.Builder
	if err := promptTmpl.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func label(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "Sem descrição"
	}
	return s
}

package narrative

import "context"

// StaticDiagnosis is the fixed document returned by Static.
const StaticDiagnosis = `### Panorama Geral
Este é um diagnóstico de demonstração. Configure um provedor de IA para receber uma análise real dos seus números.

### Pontos de Atenção
- Confira se todas as rendas, gastos essenciais e parcelas foram informados.

### Recomendações Práticas
- Revise seus gastos mensalmente e mantenha uma reserva de emergência.`

// Static always answers with StaticDiagnosis. It is meant for local
// development without an API key.
type Static struct{}

var _ Completer = Static{}

func (Static) Complete(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", transport("static", err)
	}
	return StaticDiagnosis, nil
}

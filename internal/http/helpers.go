package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finanzen/internal/core"
	"finanzen/internal/editor"
	"finanzen/internal/narrative"
)

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends a 303, or an HX-Redirect for htmx requests since htmx
// would otherwise swap the target page into the current element.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// narrativeMessage is the pt-BR message shown when a diagnosis could not be
// produced.
func narrativeMessage(err error) string {
	switch narrative.KindOf(err) {
	case narrative.KindBlocked:
		return "A análise foi bloqueada pelos filtros de segurança do serviço de IA. Revise as descrições informadas e tente novamente."
	case narrative.KindEmpty:
		return "O serviço de IA não retornou nenhum diagnóstico. Tente novamente em instantes."
	case narrative.KindTransport:
		return "Não foi possível falar com o serviço de IA. Verifique sua conexão e tente novamente."
	default:
		return "Ocorreu um erro inesperado ao gerar a análise."
	}
}

// editorStatus maps editor errors to a status code and message.
func editorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnknownCategory):
		return http.StatusBadRequest, "Categoria inválida"
	case errors.Is(err, editor.ErrUnknownField):
		return http.StatusBadRequest, "Campo inválido"
	case errors.Is(err, editor.ErrItemNotFound):
		return http.StatusNotFound, "Item não encontrado"
	case errors.Is(err, editor.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Data inválida, use o formato AAAA-MM-DD"
	default:
		return http.StatusInternalServerError, "Erro ao atualizar os dados"
	}
}

package http

import (
	"bytes"
	"net/http"

	"finanzen/internal/log"
)

// renderPartial executes a fragment template into b's body and writes it.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Partial template execution failed",
			log.FieldError, err,
			"template", name)
		InternalServerError("Erro ao montar a página").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

// afterEdit answers an edit with a fragment for htmx and a redirect to the
// form otherwise.
func (s *Server) afterEdit(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderPartial(w, r, b, name, data)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	params, resp := ParseItemParams(r, false)
	if resp != nil {
		resp.Write(w)
		return
	}

	sess := s.sessions.Get(w, r)
	id, err := sess.Editor.Add(params.Category)
	if err != nil {
		status, msg := editorStatus(err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	data := sess.Editor.Snapshot()
	log.FromContext(r.Context()).DebugContext(r.Context(), "Item added",
		log.FieldCategory, params.Category,
		log.FieldItemID, id)

	b := NewHTMXResponse().TriggerItemsChanged(string(params.Category), data.Len(params.Category))
	s.afterEdit(w, r, b, "workspace", newWorkspaceView(data, s.now()))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	params, resp := ParseItemParams(r, false)
	if resp != nil {
		resp.Write(w)
		return
	}
	if params.ID == 0 {
		BadRequestError("Identificador obrigatório").Write(w)
		return
	}

	sess := s.sessions.Get(w, r)
	if err := sess.Editor.Remove(params.Category, params.ID); err != nil {
		status, msg := editorStatus(err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	data := sess.Editor.Snapshot()
	log.FromContext(r.Context()).DebugContext(r.Context(), "Item removed",
		log.FieldCategory, params.Category,
		log.FieldItemID, params.ID)

	b := NewHTMXResponse().TriggerItemsChanged(string(params.Category), data.Len(params.Category))
	s.afterEdit(w, r, b, "workspace", newWorkspaceView(data, s.now()))
}

// handleUpdateItem sets one field and answers with the refreshed summary so
// the edited input keeps its focus.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	params, resp := ParseItemParams(r, true)
	if resp != nil {
		resp.Write(w)
		return
	}

	sess := s.sessions.Get(w, r)
	if err := sess.Editor.Update(params.Category, params.ID, params.Field, params.Value); err != nil {
		status, msg := editorStatus(err)
		log.FromContext(r.Context()).WarnContext(r.Context(), "Item update rejected",
			log.FieldCategory, params.Category,
			log.FieldItemID, params.ID,
			"field", params.Field,
			log.FieldError, err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	s.afterEdit(w, r, NewHTMXResponse(), "summary", summaryFor(sess.Editor.Snapshot(), s.now()))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	sess := s.sessions.Get(w, r)
	f := sess.Editor.SetForecast(
		sanitizeInput(r.PostForm.Get("growthRate")),
		sanitizeInput(r.PostForm.Get("monthsToForecast")),
	)
	log.FromContext(r.Context()).DebugContext(r.Context(), "Forecast updated",
		"growth_rate", f.GrowthRate,
		log.FieldMonths, f.MonthsToForecast)

	s.afterEdit(w, r, NewHTMXResponse(), "summary", summaryFor(sess.Editor.Snapshot(), s.now()))
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	s.renderPartial(w, r, NewHTMXResponse(), "summary", summaryFor(sess.Editor.Snapshot(), s.now()))
}

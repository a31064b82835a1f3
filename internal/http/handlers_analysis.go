package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"finanzen/internal/core"
	"finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/session"
	"finanzen/internal/storage"
)

const historyLimit = 20

// handleAnalyze runs the aggregation, projection and diagnosis for the
// session's data. Diagnosis failures are reported on the form page.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAnalysis)
	sess := s.sessions.Get(w, r)

	data := sess.Editor.Snapshot()
	totals := core.Summarize(data)
	if totals.TotalIncome <= 0 && totals.TotalExpenses <= 0 {
		sess.Flash("Informe ao menos uma renda ou despesa antes de pedir a análise.")
		redirect(w, r, "/")
		return
	}

	var email string
	if p := sess.Profile(); p != nil {
		email = p.Email
	}

	res, err := s.analysis.Analyze(ctx, data, email)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.analysisFailures, 1)
		logger.ErrorContext(ctx, "Analysis failed",
			log.FieldOperation, log.OpAnalyze,
			log.FieldError, err)
		sess.Flash(narrativeMessage(err))
		redirect(w, r, "/")
		return
	}
	atomic.AddInt64(&s.appMetrics.analyses, 1)

	sess.SetAnalysis(&session.Analysis{
		ID:         res.ID,
		CreatedAt:  res.CreatedAt,
		Data:       res.Data,
		Totals:     res.Totals,
		Projection: res.Projection,
		Diagnosis:  res.Diagnosis,
	})
	log.NewStructuredLogger(logger).LogAnalysis(ctx, res.ID,
		res.Totals.TotalIncome, res.Totals.TotalExpenses, res.Totals.PaymentCapacity,
		res.Data.IncomeForecast.MonthsToForecast)

	redirect(w, r, "/dashboard")
}

// handleDashboard shows the last analysis, or sends the user back to the
// form when there is none.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	a := sess.Analysis()
	if a == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view, err := newDashboardView(a, s.now())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard view failed", log.FieldError, err)
		http.Error(w, "Erro ao montar o painel", http.StatusInternalServerError)
		return
	}
	view.ReportsOn = s.analysis.ReportsEnabled()
	view.LoginOn = s.auth != nil
	view.LoggedIn = sess.Token() != nil

	s.render(w, r, http.StatusOK, "dashboard.html", s.page(sess, "Sua análise - FinanZen", "dashboard", view))
}

// handleEdit drops the analysis and returns to the form with the data kept.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.sessions.Get(w, r).ClearAnalysis()
	redirect(w, r, "/")
}

// sessionTokenSource stores refreshed tokens back in the session.
type sessionTokenSource struct {
	base oauth2.TokenSource
	sess *session.Session
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.base.Token()
	if err != nil {
		return nil, err
	}
	ts.sess.UpdateToken(tok)
	return tok, nil
}

// userTokenSource returns the signed-in user's token source, or false when
// the session has no Google login.
func (s *Server) userTokenSource(ctx context.Context, sess *session.Session) (oauth2.TokenSource, bool) {
	tok := sess.Token()
	if s.auth == nil || tok == nil {
		return nil, false
	}
	return &sessionTokenSource{base: s.auth.TokenSource(ctx, tok), sess: sess}, true
}

type saveView struct {
	ID  string
	URL string
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentSheets)
	sess := s.sessions.Get(w, r)

	a := sess.Analysis()
	if a == nil {
		NotFoundError("Nenhuma análise para salvar.").Write(w)
		return
	}
	if !s.analysis.ReportsEnabled() {
		ErrorResponse(http.StatusServiceUnavailable, "O salvamento em planilhas não está configurado.").Write(w)
		return
	}
	ts, ok := s.userTokenSource(ctx, sess)
	if !ok {
		msg := "Entre com sua conta Google para salvar no Google Sheets."
		UnauthorizedError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ref, err := s.analysis.SaveReport(ctx, ts, &services.Result{
		ID:         a.ID,
		CreatedAt:  a.CreatedAt,
		Data:       a.Data,
		Totals:     a.Totals,
		Projection: a.Projection,
		Diagnosis:  a.Diagnosis,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save report",
			log.FieldOperation, log.OpSave,
			log.FieldAnalysisID, a.ID,
			log.FieldError, err)
		msg := "Não foi possível salvar no Google Sheets. Tente novamente."
		InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.reportsSaved, 1)
	sess.SetSheetURL(ref.URL)
	logger.InfoContext(ctx, "Report saved",
		log.FieldAnalysisID, a.ID,
		log.FieldSpreadsheetID, ref.ID)

	b := NewHTMXResponse().
		TriggerReportSaved(ref.URL).
		TriggerSuccessNotification("Análise salva no Google Sheets.")
	s.renderPartial(w, r, b, "save_result", saveView{ID: ref.ID, URL: ref.URL})
}

// spreadsheetID accepts a bare id or a Google Sheets link.
func spreadsheetID(input string) string {
	input = strings.TrimSpace(input)
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return input
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" {
			return parts[i+1]
		}
	}
	return ""
}

// handleOpenReport loads a saved spreadsheet back into the form.
func (s *Server) handleOpenReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentSheets)
	sess := s.sessions.Get(w, r)

	id := spreadsheetID(sanitizeInput(r.URL.Query().Get("id")))
	if id == "" {
		sess.Flash("Informe o link ou o identificador da planilha.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !s.analysis.ReportsEnabled() {
		sess.Flash("A leitura de planilhas não está configurada.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ts, ok := s.userTokenSource(ctx, sess)
	if !ok {
		sess.Flash("Entre com sua conta Google para abrir uma planilha salva.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	report, err := s.analysis.OpenReport(ctx, ts, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open report",
			log.FieldOperation, log.OpRead,
			log.FieldSpreadsheetID, id,
			log.FieldError, err)
		sess.Flash("Não foi possível abrir a planilha. Confira o link e suas permissões.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	atomic.AddInt64(&s.appMetrics.reportsOpened, 1)

	sess.Editor.Replace(report.Data)
	sess.ClearAnalysis()
	sess.Flash("Planilha carregada. Ajuste os dados e gere uma nova análise.")
	logger.InfoContext(ctx, "Report opened", log.FieldSpreadsheetID, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type historyRow struct {
	ID        int64
	CreatedAt string
	Income    string
	Expenses  string
	Capacity  string
	Class     string
	SheetURL  string
	Synced    bool
}

func newHistoryRows(list []storage.Analysis) []historyRow {
	rows := make([]historyRow, 0, len(list))
	for _, a := range list {
		rows = append(rows, historyRow{
			ID:        a.ID,
			CreatedAt: a.CreatedAt.Local().Format("02/01/2006 15:04"),
			Income:    core.FormatBRL(a.Totals.TotalIncome),
			Expenses:  core.FormatBRL(a.Totals.TotalExpenses),
			Capacity:  core.FormatBRL(a.Totals.PaymentCapacity),
			Class:     capacityClass(a.Totals),
			SheetURL:  a.SpreadsheetURL,
			Synced:    a.SyncStatus == storage.SyncSynced,
		})
	}
	return rows
}

// historyUser returns the e-mail of the signed-in user when history is
// available, redirecting to the form otherwise.
func (s *Server) historyUser(w http.ResponseWriter, r *http.Request, sess *session.Session) (string, bool) {
	if s.history == nil {
		http.NotFound(w, r)
		return "", false
	}
	p := sess.Profile()
	if p == nil || p.Email == "" {
		sess.Flash("Entre com sua conta Google para ver o histórico de análises.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return "", false
	}
	return p.Email, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	email, ok := s.historyUser(w, r, sess)
	if !ok {
		return
	}

	list, err := s.history.ListRecent(r.Context(), email, historyLimit)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentStorage).ErrorContext(r.Context(), "Failed to list analyses",
			log.FieldOperation, log.OpList,
			log.FieldError, err)
		http.Error(w, "Erro ao carregar o histórico", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "history.html", s.page(sess, "Histórico - FinanZen", "history", newHistoryRows(list)))
}

// handleRestore reopens a stored analysis on the dashboard.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	email, ok := s.historyUser(w, r, sess)
	if !ok {
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id, err := parseID(r.PostForm.Get("id"))
	if err != nil {
		BadRequestError("Identificador inválido").Write(w)
		return
	}

	a, err := s.history.GetAnalysis(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && a.UserEmail != email) {
		NotFoundError("Análise não encontrada").Write(w)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentStorage).ErrorContext(r.Context(), "Failed to load analysis",
			log.FieldAnalysisID, id,
			log.FieldError, err)
		InternalServerError("Erro ao carregar a análise").Write(w)
		return
	}

	sess.Editor.Replace(a.Data)
	sess.SetAnalysis(&session.Analysis{
		ID:         a.ID,
		CreatedAt:  a.CreatedAt,
		Data:       a.Data,
		Totals:     a.Totals,
		Projection: core.ProjectIncome(a.Totals.TotalIncome, a.Data.IncomeForecast),
		Diagnosis:  a.Diagnosis,
		SheetURL:   a.SpreadsheetURL,
	})
	redirect(w, r, "/dashboard")
}

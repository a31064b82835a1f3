package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type appMetrics struct {
	uptime           time.Time
	analyses         int64
	analysisFailures int64
	reportsSaved     int64
	reportsOpened    int64
	logins           int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and, when configured, the history database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			checks["history_db"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["history_db"] = "ok"
		}
	} else {
		checks["history_db"] = "disabled"
	}

	checks["google_login"] = enabledString(s.auth != nil)
	checks["reports"] = enabledString(s.analysis.ReportsEnabled())
	checks["sessions"] = map[string]any{"active": s.sessions.Len()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.analyzeLimiter.ActiveClients()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func enabledString(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.analyzeLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_ms", "gauge", "Average response time", traceMetrics.AverageResponseTime.Milliseconds())
	metric("analyses_total", "counter", "Analyses completed", atomic.LoadInt64(&s.appMetrics.analyses))
	metric("analysis_failures_total", "counter", "Analyses whose diagnosis failed", atomic.LoadInt64(&s.appMetrics.analysisFailures))
	metric("reports_saved_total", "counter", "Reports written to spreadsheets", atomic.LoadInt64(&s.appMetrics.reportsSaved))
	metric("reports_opened_total", "counter", "Reports read back from spreadsheets", atomic.LoadInt64(&s.appMetrics.reportsOpened))
	metric("logins_total", "counter", "Completed Google logins", atomic.LoadInt64(&s.appMetrics.logins))
	metric("sessions_active", "gauge", "Live sessions", s.sessions.Len())
	metric("rate_limit_hits_total", "counter", "Rejected analyze requests", rateMetrics.TotalHits)
	metric("suspicious_requests_total", "counter", "Suspicious requests blocked", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

type indexView struct {
	Workspace   workspaceView
	HasAnalysis bool
	CanOpen     bool
}

// handleIndex renders the form page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	sess := s.sessions.Get(w, r)
	view := indexView{
		Workspace:   newWorkspaceView(sess.Editor.Snapshot(), s.now()),
		HasAnalysis: sess.Analysis() != nil,
		CanOpen:     s.analysis.ReportsEnabled() && s.auth != nil && sess.Token() != nil,
	}
	s.render(w, r, http.StatusOK, "index.html", s.page(sess, "FinanZen", "form", view))
}

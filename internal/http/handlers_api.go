package http

import (
	"encoding/json"
	"net/http"

	"finanzen/internal/core"
	"finanzen/internal/log"
)

type projectionPointJSON struct {
	core.ProjectionPoint
	Label string `json:"label"`
}

type projectionJSON struct {
	GrowthRate       float64               `json:"growthRate"`
	MonthlyRate      float64               `json:"monthlyRate"`
	MonthsToForecast int                   `json:"monthsToForecast"`
	Points           []projectionPointJSON `json:"points"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to encode JSON response", log.FieldError, err)
	}
}

// handleAPISummary returns the totals of the session's current data.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	s.writeJSON(w, r, core.Summarize(sess.Editor.Snapshot()))
}

// handleAPIProjection returns the projected income series of the session's
// current data.
func (s *Server) handleAPIProjection(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	data := sess.Editor.Snapshot()
	f := data.IncomeForecast
	points := core.ProjectIncome(core.Summarize(data).TotalIncome, f)

	out := projectionJSON{
		GrowthRate:       f.GrowthRate,
		MonthsToForecast: f.MonthsToForecast,
		Points:           make([]projectionPointJSON, 0, len(points)),
	}
	if len(points) > 0 {
		out.MonthlyRate = core.MonthlyGrowthRate(f.GrowthRate)
	}
	now := s.now()
	for _, p := range points {
		out.Points = append(out.Points, projectionPointJSON{ProjectionPoint: p, Label: monthLabel(now, p.MonthIndex)})
	}
	s.writeJSON(w, r, out)
}

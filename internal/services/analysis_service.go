package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"finanzen/internal/core"
	"finanzen/internal/narrative"
	"finanzen/internal/sheets"
	"finanzen/internal/storage"
)

// AnalysisRepository is the part of storage the service writes to.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, a storage.Analysis) (int64, error)
	SetSpreadsheetURL(ctx context.Context, id int64, url string) error
}

// SyncPublisher announces new analyses to the history worker.
type SyncPublisher interface {
	PublishAnalysisSync(ctx context.Context, id, version int64) error
}

var ErrNoReports = errors.New("spreadsheet reports are not configured")

// Result is one finished analysis.
type Result struct {
	ID         int64 // 0 when history is disabled or saving failed
	CreatedAt  time.Time
	Data       core.FinancialData
	Totals     core.Totals
	Projection []core.ProjectionPoint
	Diagnosis  string
}

// Report converts the result into the spreadsheet document.
func (r *Result) Report() core.Report {
	return core.Report{
		CreatedAt: r.CreatedAt,
		Data:      r.Data,
		Totals:    r.Totals,
		Diagnosis: r.Diagnosis,
	}
}

// AnalysisService orchestrates an analysis across the narrative provider,
// SQLite and AMQP. Only the completer is required.
type AnalysisService struct {
	completer   narrative.Completer
	repo        AnalysisRepository
	publisher   SyncPublisher
	reports     sheets.Reports
	temperature float64
	now         func() time.Time
}

func NewAnalysisService(completer narrative.Completer, repo AnalysisRepository, publisher SyncPublisher, reports sheets.Reports) *AnalysisService {
	return &AnalysisService{
		completer:   completer,
		repo:        repo,
		publisher:   publisher,
		reports:     reports,
		temperature: narrative.DefaultTemperature,
		now:         time.Now,
	}
}

// Analyze computes totals and projection for data and asks the narrative
// provider for a diagnosis. Completion failures are returned unchanged so
// callers can inspect narrative.KindOf. Saving and publishing are best
// effort.
func (s *AnalysisService) Analyze(ctx context.Context, data core.FinancialData, userEmail string) (*Result, error) {
	now := s.now()
	data = data.Clone()
	totals := core.Summarize(data)
	projection := core.ProjectIncome(totals.TotalIncome, data.IncomeForecast)

	prompt, err := narrative.RenderPrompt(narrative.PromptInput{
		Data:       data,
		Totals:     totals,
		Projection: projection,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	start := time.Now()
	diagnosis, err := s.completer.Complete(ctx, narrative.Request{
		System:      narrative.SystemInstruction,
		Prompt:      prompt,
		Temperature: s.temperature,
	})
	if err != nil {
		slog.WarnContext(ctx, "Diagnosis request failed",
			"kind", narrative.KindOf(err),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "Diagnosis generated",
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(diagnosis))

	res := &Result{
		CreatedAt:  now,
		Data:       data,
		Totals:     totals,
		Projection: projection,
		Diagnosis:  diagnosis,
	}
	res.ID = s.persist(ctx, res, userEmail)
	return res, nil
}

func (s *AnalysisService) persist(ctx context.Context, res *Result, userEmail string) int64 {
	if s.repo == nil {
		return 0
	}
	id, err := s.repo.SaveAnalysis(ctx, storage.Analysis{
		CreatedAt: res.CreatedAt,
		UserEmail: userEmail,
		Data:      res.Data,
		Totals:    res.Totals,
		Diagnosis: res.Diagnosis,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to save analysis", "error", err)
		return 0
	}

	if err := s.publishSyncMessage(ctx, id, 1); err != nil {
		// The worker's pending sweep picks the row up later.
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
	return id
}

func (s *AnalysisService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishAnalysisSync(ctx, id, version)
}

// SaveReport writes res to a new spreadsheet owned by the token's user and
// records the link next to the stored analysis.
func (s *AnalysisService) SaveReport(ctx context.Context, ts oauth2.TokenSource, res *Result) (core.SheetRef, error) {
	if s.reports == nil {
		return core.SheetRef{}, ErrNoReports
	}
	ref, err := s.reports.WriteReport(ctx, ts, res.Report())
	if err != nil {
		return core.SheetRef{}, fmt.Errorf("write report: %w", err)
	}
	slog.InfoContext(ctx, "Report saved to spreadsheet", "analysis_id", res.ID, "spreadsheet_id", ref.ID)

	if s.repo != nil && res.ID > 0 {
		if err := s.repo.SetSpreadsheetURL(ctx, res.ID, ref.URL); err != nil {
			slog.ErrorContext(ctx, "Failed to record spreadsheet url", "id", res.ID, "error", err)
		}
	}
	return ref, nil
}

// OpenReport reads a spreadsheet written by SaveReport.
func (s *AnalysisService) OpenReport(ctx context.Context, ts oauth2.TokenSource, spreadsheetID string) (core.Report, error) {
	if s.reports == nil {
		return core.Report{}, ErrNoReports
	}
	r, err := s.reports.ReadReport(ctx, ts, spreadsheetID)
	if err != nil {
		return core.Report{}, fmt.Errorf("read report %s: %w", spreadsheetID, err)
	}
	return r, nil
}

// ReportsEnabled reports whether spreadsheets can be saved and opened.
func (s *AnalysisService) ReportsEnabled() bool {
	return s.reports != nil
}

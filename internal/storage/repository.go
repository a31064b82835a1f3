// Package storage keeps a local history of analyses in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finanzen/internal/core"

	_ "modernc.org/sqlite"
)

// MaxSyncAttempts bounds how often a failing history sync is retried.
const MaxSyncAttempts = 5

const timeLayout = time.RFC3339Nano

var ErrNotFound = errors.New("analysis not found")

// Sync states of an analysis.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Analysis is a stored analysis.
type Analysis struct {
	ID             int64
	CreatedAt      time.Time
	UserEmail      string
	Data           core.FinancialData
	Totals         core.Totals
	Diagnosis      string
	SpreadsheetURL string
	SyncStatus     string
	SyncAttempts   int
	Version        int64
}

// HistoryEntry is the row appended to the history spreadsheet.
func (a Analysis) HistoryEntry() core.HistoryEntry {
	return core.HistoryEntry{
		AnalysisID:       a.ID,
		CreatedAt:        a.CreatedAt,
		UserEmail:        a.UserEmail,
		Totals:           a.Totals,
		GrowthRate:       a.Data.IncomeForecast.GrowthRate,
		MonthsToForecast: a.Data.IncomeForecast.MonthsToForecast,
	}
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN builds the connection string for dbPath with a busy timeout and WAL.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveAnalysis stores a new analysis in pending sync state and returns its id.
func (r *SQLiteRepository) SaveAnalysis(ctx context.Context, a Analysis) (int64, error) {
	snapshot, err := json.Marshal(a.Data)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	row, err := r.queries.CreateAnalysis(ctx, CreateAnalysisParams{
		CreatedAt:         a.CreatedAt.UTC().Format(timeLayout),
		UserEmail:         a.UserEmail,
		SnapshotJSON:      string(snapshot),
		TotalIncome:       a.Totals.TotalIncome,
		EssentialExpenses: a.Totals.EssentialExpenses,
		DebtPayments:      a.Totals.DebtPayments,
		TotalExpenses:     a.Totals.TotalExpenses,
		PaymentCapacity:   a.Totals.PaymentCapacity,
		GrowthRate:        a.Data.IncomeForecast.GrowthRate,
		MonthsToForecast:  int64(a.Data.IncomeForecast.MonthsToForecast),
		Diagnosis:         a.Diagnosis,
	})
	if err != nil {
		return 0, fmt.Errorf("create analysis: %w", err)
	}

	slog.InfoContext(ctx, "Analysis saved to SQLite",
		"id", row.ID,
		"total_income", row.TotalIncome,
		"payment_capacity", row.PaymentCapacity)
	return row.ID, nil
}

// GetAnalysis returns ErrNotFound for unknown ids.
func (r *SQLiteRepository) GetAnalysis(ctx context.Context, id int64) (*Analysis, error) {
	row, err := r.queries.GetAnalysis(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %d: %w", id, err)
	}
	a, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRecent returns the newest analyses of a user, newest first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, userEmail string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRecentByUser(ctx, userEmail, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return fromRows(rows)
}

// SetSpreadsheetURL records where an analysis was saved.
func (r *SQLiteRepository) SetSpreadsheetURL(ctx context.Context, id int64, url string) error {
	n, err := r.queries.SetSpreadsheetURL(ctx, url, id)
	if err != nil {
		return fmt.Errorf("set spreadsheet url: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingSync returns analyses not yet appended to the history sheet,
// oldest first, skipping those that failed MaxSyncAttempts times.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := r.queries.GetPendingSync(ctx, MaxSyncAttempts, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	return fromRows(rows)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	n, err := r.queries.MarkSynced(ctx, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	n, err := r.queries.MarkSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored analyses.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return r.queries.CountAnalyses(ctx)
}

func fromRows(rows []AnalysisRow) ([]Analysis, error) {
	out := make([]Analysis, 0, len(rows))
	for _, row := range rows {
		a, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func fromRow(row AnalysisRow) (Analysis, error) {
	var data core.FinancialData
	if err := json.Unmarshal([]byte(row.SnapshotJSON), &data); err != nil {
		return Analysis{}, fmt.Errorf("decode snapshot of analysis %d: %w", row.ID, err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return Analysis{}, fmt.Errorf("parse created_at of analysis %d: %w", row.ID, err)
	}
	return Analysis{
		ID:        row.ID,
		CreatedAt: created,
		UserEmail: row.UserEmail,
		Data:      data,
		Totals: core.Totals{
			TotalIncome:       row.TotalIncome,
			EssentialExpenses: row.EssentialExpenses,
			DebtPayments:      row.DebtPayments,
			TotalExpenses:     row.TotalExpenses,
			PaymentCapacity:   row.PaymentCapacity,
		},
		Diagnosis:      row.Diagnosis,
		SpreadsheetURL: row.SpreadsheetURL,
		SyncStatus:     row.SyncStatus,
		SyncAttempts:   int(row.SyncAttempts),
		Version:        row.Version,
	}, nil
}

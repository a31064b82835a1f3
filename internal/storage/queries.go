package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// AnalysisRow mirrors one row of the analyses table.
type AnalysisRow struct {
	ID                int64
	CreatedAt         string
	UserEmail         string
	SnapshotJSON      string
	TotalIncome       float64
	EssentialExpenses float64
	DebtPayments      float64
	TotalExpenses     float64
	PaymentCapacity   float64
	GrowthRate        float64
	MonthsToForecast  int64
	Diagnosis         string
	Version           int64
	SpreadsheetURL    string
	SyncStatus        string
	SyncAttempts      int64
	SyncedAt          sql.NullString
}

const analysisColumns = `id, created_at, user_email, snapshot_json, total_income,
	essential_expenses, debt_payments, total_expenses, payment_capacity,
	growth_rate, months_to_forecast, diagnosis, version, spreadsheet_url,
	sync_status, sync_attempts, synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s rowScanner) (AnalysisRow, error) {
	var i AnalysisRow
	err := s.Scan(
		&i.ID,
		&i.CreatedAt,
		&i.UserEmail,
		&i.SnapshotJSON,
		&i.TotalIncome,
		&i.EssentialExpenses,
		&i.DebtPayments,
		&i.TotalExpenses,
		&i.PaymentCapacity,
		&i.GrowthRate,
		&i.MonthsToForecast,
		&i.Diagnosis,
		&i.Version,
		&i.SpreadsheetURL,
		&i.SyncStatus,
		&i.SyncAttempts,
		&i.SyncedAt,
	)
	return i, err
}

const createAnalysis = `INSERT INTO analyses (
	created_at, user_email, snapshot_json, total_income, essential_expenses,
	debt_payments, total_expenses, payment_capacity, growth_rate,
	months_to_forecast, diagnosis
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + analysisColumns

type CreateAnalysisParams struct {
	CreatedAt         string
	UserEmail         string
	SnapshotJSON      string
	TotalIncome       float64
	EssentialExpenses float64
	DebtPayments      float64
	TotalExpenses     float64
	PaymentCapacity   float64
	GrowthRate        float64
	MonthsToForecast  int64
	Diagnosis         string
}

func (q *Queries) CreateAnalysis(ctx context.Context, arg CreateAnalysisParams) (AnalysisRow, error) {
	row := q.db.QueryRowContext(ctx, createAnalysis,
		arg.CreatedAt,
		arg.UserEmail,
		arg.SnapshotJSON,
		arg.TotalIncome,
		arg.EssentialExpenses,
		arg.DebtPayments,
		arg.TotalExpenses,
		arg.PaymentCapacity,
		arg.GrowthRate,
		arg.MonthsToForecast,
		arg.Diagnosis,
	)
	return scanAnalysis(row)
}

const getAnalysis = `SELECT ` + analysisColumns + ` FROM analyses WHERE id = ?`

func (q *Queries) GetAnalysis(ctx context.Context, id int64) (AnalysisRow, error) {
	return scanAnalysis(q.db.QueryRowContext(ctx, getAnalysis, id))
}

const listRecentByUser = `SELECT ` + analysisColumns + ` FROM analyses
WHERE user_email = ?
ORDER BY id DESC
LIMIT ?`

func (q *Queries) ListRecentByUser(ctx context.Context, userEmail string, limit int64) ([]AnalysisRow, error) {
	return q.list(ctx, listRecentByUser, userEmail, limit)
}

const getPendingSync = `SELECT ` + analysisColumns + ` FROM analyses
WHERE sync_status = 'pending' OR (sync_status = 'error' AND sync_attempts < ?)
ORDER BY id
LIMIT ?`

func (q *Queries) GetPendingSync(ctx context.Context, maxAttempts, limit int64) ([]AnalysisRow, error) {
	return q.list(ctx, getPendingSync, maxAttempts, limit)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]AnalysisRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnalysisRow
	for rows.Next() {
		i, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setSpreadsheetURL = `UPDATE analyses
SET spreadsheet_url = ?, version = version + 1
WHERE id = ?`

func (q *Queries) SetSpreadsheetURL(ctx context.Context, url string, id int64) (int64, error) {
	return q.exec(ctx, setSpreadsheetURL, url, id)
}

const markSynced = `UPDATE analyses
SET sync_status = 'synced', synced_at = ?
WHERE id = ?`

func (q *Queries) MarkSynced(ctx context.Context, syncedAt string, id int64) (int64, error) {
	return q.exec(ctx, markSynced, syncedAt, id)
}

const markSyncError = `UPDATE analyses
SET sync_status = 'error', sync_attempts = sync_attempts + 1
WHERE id = ?`

func (q *Queries) MarkSyncError(ctx context.Context, id int64) (int64, error) {
	return q.exec(ctx, markSyncError, id)
}

const countAnalyses = `SELECT COUNT(*) FROM analyses`

func (q *Queries) CountAnalyses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAnalyses).Scan(&n)
	return n, err
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

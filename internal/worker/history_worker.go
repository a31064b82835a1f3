// Package worker appends stored analyses to the shared history spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"finanzen/internal/amqp"
	"finanzen/internal/sheets"
	"finanzen/internal/storage"
)

// AnalysisStore is the storage the worker reads from and marks.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, id int64) (*storage.Analysis, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.Analysis, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// HistoryWorker syncs analyses from SQLite to the history sheet.
type HistoryWorker struct {
	store     AnalysisStore
	history   sheets.HistoryAppender
	batchSize int
}

func NewHistoryWorker(store AnalysisStore, history sheets.HistoryAppender, batchSize int) *HistoryWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &HistoryWorker{store: store, history: history, batchSize: batchSize}
}

// HandleSyncMessage processes one AMQP message. A returned error requeues
// the message; rows that are gone, already synced or out of attempts are
// acknowledged.
func (w *HistoryWorker) HandleSyncMessage(ctx context.Context, msg *amqp.AnalysisSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	a, err := w.store.GetAnalysis(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Analysis not found, dropping message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get analysis from storage: %w", err)
	}

	switch {
	case a.SyncStatus == storage.SyncSynced:
		slog.DebugContext(ctx, "Analysis already synced", "id", a.ID)
		return nil
	case a.SyncAttempts >= storage.MaxSyncAttempts:
		slog.WarnContext(ctx, "Analysis exceeded sync attempts, giving up",
			"id", a.ID,
			"attempts", a.SyncAttempts)
		return nil
	}

	return w.sync(ctx, a)
}

// ProcessPending sweeps rows whose message was lost or failed.
func (w *HistoryWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker boots.
func (w *HistoryWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending analyses found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *HistoryWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending analyses: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending analyses", "count", len(pending))
	for i := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.sync(ctx, &pending[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to sync analysis", "id", pending[i].ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *HistoryWorker) sync(ctx context.Context, a *storage.Analysis) error {
	ref, err := w.history.AppendHistory(ctx, a.HistoryEntry())
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, a.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", a.ID, "error", markErr)
		}
		return fmt.Errorf("append history row: %w", err)
	}

	// The row is in the sheet; a failed mark only means a duplicate later.
	if err := w.store.MarkSynced(ctx, a.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", a.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced analysis to history",
		"id", a.ID,
		"row_ref", ref,
		"payment_capacity", a.Totals.PaymentCapacity)
	return nil
}

// Schedule registers the pending sweep on c with a cron spec such as
// "@every 5m".
func (w *HistoryWorker) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		synced, failed, err := w.ProcessPending(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			return
		}
		if synced+failed > 0 {
			slog.InfoContext(ctx, "Pending sweep finished", "synced", synced, "errors", failed)
		}
	})
}

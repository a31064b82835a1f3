package sheets

import (
	"context"

	"golang.org/x/oauth2"

	"finanzen/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// ReportWriter creates a new spreadsheet in the user's drive holding one
	// analysis.
	ReportWriter interface {
		WriteReport(ctx context.Context, ts oauth2.TokenSource, r core.Report) (core.SheetRef, error)
	}

	// ReportReader reads back a spreadsheet written by ReportWriter.
	ReportReader interface {
		ReadReport(ctx context.Context, ts oauth2.TokenSource, spreadsheetID string) (core.Report, error)
	}

	// HistoryAppender adds one row per analysis to a shared history sheet.
	HistoryAppender interface {
		AppendHistory(ctx context.Context, e core.HistoryEntry) (rowRef string, err error)
	}

	// Reports combines the per-user ports.
	Reports interface {
		ReportWriter
		ReportReader
	}
)

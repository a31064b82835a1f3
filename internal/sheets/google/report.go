package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"finanzen/internal/core"
	ports "finanzen/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ReportClient writes and reads report spreadsheets on behalf of the signed
// in user. A Sheets service is built per call from the user's token source.
type ReportClient struct {
	opts []goption.ClientOption
}

var _ ports.Reports = (*ReportClient)(nil)

// NewReportClient returns a client. Options are appended after the token
// source, which lets tests point it at a fake endpoint.
func NewReportClient(opts ...goption.ClientOption) *ReportClient {
	return &ReportClient{opts: opts}
}

func (c *ReportClient) service(ctx context.Context, ts oauth2.TokenSource) (*gsheet.Service, error) {
	if ts == nil {
		return nil, errors.New("missing token source")
	}
	opts := append([]goption.ClientOption{goption.WithTokenSource(ts)}, c.opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// WriteReport creates a spreadsheet with one tab per section and fills all
// of them in a single batch update.
func (c *ReportClient) WriteReport(ctx context.Context, ts oauth2.TokenSource, r core.Report) (core.SheetRef, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	svc, err := c.service(ctx, ts)
	if err != nil {
		return core.SheetRef{}, err
	}

	spreadsheet := &gsheet.Spreadsheet{
		Properties: &gsheet.SpreadsheetProperties{
			Title:  ReportTitle(r),
			Locale: "pt_BR",
		},
	}
	for _, name := range []string{SummarySheet, IncomeSheet, ExpensesSheet, DebtsSheet} {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &gsheet.Sheet{
			Properties: &gsheet.SheetProperties{Title: name},
		})
	}

	created, err := svc.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return core.SheetRef{}, fmt.Errorf("create spreadsheet: %w", err)
	}
	ref := core.SheetRef{ID: created.SpreadsheetId, URL: created.SpreadsheetUrl}
	if ref.URL == "" {
		ref.URL = "https://docs.google.com/spreadsheets/d/" + ref.ID + "/edit"
	}

	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             reportRanges(r),
	}
	if _, err := svc.Spreadsheets.Values.BatchUpdate(ref.ID, req).Context(ctx).Do(); err != nil {
		return ref, fmt.Errorf("write spreadsheet %s: %w", ref.ID, err)
	}

	slog.InfoContext(ctx, "Report spreadsheet written", "spreadsheet_id", ref.ID)
	return ref, nil
}

// ReadReport loads a report spreadsheet back into a core.Report.
func (c *ReportClient) ReadReport(ctx context.Context, ts oauth2.TokenSource, spreadsheetID string) (core.Report, error) {
	if spreadsheetID == "" {
		return core.Report{}, errors.New("missing spreadsheet id")
	}
	svc, err := c.service(ctx, ts)
	if err != nil {
		return core.Report{}, err
	}

	resp, err := svc.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(readRanges()...).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return core.Report{}, fmt.Errorf("read spreadsheet %s: %w", spreadsheetID, err)
	}

	values := make([][][]any, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		values = append(values, vr.Values)
	}
	r, err := parseReport(values)
	if err != nil {
		return core.Report{}, fmt.Errorf("parse spreadsheet %s: %w", spreadsheetID, err)
	}
	return r, nil
}

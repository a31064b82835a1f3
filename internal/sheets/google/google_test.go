package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"finanzen/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets is a minimal Sheets API keeping the last batch update in memory.
type fakeSheets struct {
	mu       sync.Mutex
	title    string
	tabs     []string
	data     map[string][][]any
	input    string
	appended [][]any
	appendTo string
}

func newFakeSheets(t *testing.T) (*fakeSheets, *httptest.Server) {
	t.Helper()
	f := &fakeSheets{data: map[string][][]any{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets":
		var ss gsheet.Spreadsheet
		_ = json.NewDecoder(r.Body).Decode(&ss)
		f.title = ss.Properties.Title
		for _, s := range ss.Sheets {
			f.tabs = append(f.tabs, s.Properties.Title)
		}
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1","spreadsheetUrl":"https://docs.google.com/spreadsheets/d/sheet-1/edit"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/values:batchUpdate"):
		var req gsheet.BatchUpdateValuesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.input = req.ValueInputOption
		for _, vr := range req.Data {
			tab := strings.SplitN(vr.Range, "!", 2)[0]
			f.data[tab] = vr.Values
		}
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/values:batchGet"):
		resp := gsheet.BatchGetValuesResponse{SpreadsheetId: "sheet-1"}
		for _, rng := range r.URL.Query()["ranges"] {
			tab := strings.SplitN(rng, "!", 2)[0]
			resp.ValueRanges = append(resp.ValueRanges, &gsheet.ValueRange{Range: rng, Values: f.data[tab]})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended = append(f.appended, vr.Values...)
		f.appendTo = strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/hist-1/values/")
		fmt.Fprintf(w, `{"updates":{"updatedRange":"%s!A%d:I%d"}}`, "2026 Histórico", len(f.appended)+1, len(f.appended)+1)
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func sampleReport() core.Report {
	data := core.FinancialData{
		Income: []core.LineItem{
			{ID: 4, Description: "Salário Líquido", Amount: 5000},
			{ID: 9, Description: "Aluguel recebido", Amount: 750.5},
		},
		Expenses: []core.LineItem{{ID: 1, Description: "Aluguel", Amount: 1500}},
		Debts: []core.DebtItem{{
			ID: 1, Description: "Cartão de Crédito", Amount: 300, LoanAmount: 3000,
			OutstandingBalance: 1800, TotalInstallments: 10, MonthlyInterestRate: 1.99,
			AnnualInterestRate: 26.68, StartDate: "2026-01-10", EndDate: "2026-10-10",
		}},
		IncomeForecast: core.IncomeForecast{GrowthRate: 8, MonthsToForecast: 24},
	}
	return core.Report{
		CreatedAt: time.Date(2026, 10, 19, 14, 30, 0, 0, time.Local),
		Data:      data,
		Totals:    core.Summarize(data),
		Diagnosis: "### Panorama Geral\nSaudável.\n### Pontos de Atenção\n- Cartão",
	}
}

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test", TokenType: "Bearer"})
}

func TestReportRoundTrip(t *testing.T) {
	fake, srv := newFakeSheets(t)
	c := NewReportClient(goption.WithEndpoint(srv.URL + "/"))
	ctx := context.Background()
	r := sampleReport()

	ref, err := c.WriteReport(ctx, staticToken(), r)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if ref.ID != "sheet-1" || !strings.Contains(ref.URL, "sheet-1") {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if fake.title != "Análise FinanZen - 19/10/2026" {
		t.Errorf("title = %q", fake.title)
	}
	if strings.Join(fake.tabs, ",") != "Resumo,Rendas,Gastos,Dívidas" {
		t.Errorf("tabs = %v", fake.tabs)
	}
	if fake.input != "USER_ENTERED" {
		t.Errorf("value input option = %q", fake.input)
	}

	got, err := c.ReadReport(ctx, staticToken(), ref.ID)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if len(got.Data.Income) != 2 || got.Data.Income[1].Amount != 750.5 || got.Data.Income[1].ID != 2 {
		t.Errorf("income = %+v", got.Data.Income)
	}
	if len(got.Data.Debts) != 1 {
		t.Fatalf("debts = %+v", got.Data.Debts)
	}
	want := r.Data.Debts[0]
	want.ID = 1
	if got.Data.Debts[0] != want {
		t.Errorf("debt = %+v, want %+v", got.Data.Debts[0], want)
	}
	if got.Data.IncomeForecast != r.Data.IncomeForecast {
		t.Errorf("forecast = %+v", got.Data.IncomeForecast)
	}
	if got.Totals != r.Totals {
		t.Errorf("totals = %+v, want %+v", got.Totals, r.Totals)
	}
	if strings.Contains(got.Diagnosis, "###") || !strings.Contains(got.Diagnosis, "Panorama Geral") {
		t.Errorf("diagnosis = %q", got.Diagnosis)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("created = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
}

func TestReportClientErrors(t *testing.T) {
	_, srv := newFakeSheets(t)
	c := NewReportClient(goption.WithEndpoint(srv.URL + "/"))
	ctx := context.Background()

	if _, err := c.WriteReport(ctx, nil, sampleReport()); err == nil {
		t.Error("expected error without token source")
	}
	if _, err := c.ReadReport(ctx, staticToken(), ""); err == nil {
		t.Error("expected error without spreadsheet id")
	}
}

func TestAppendHistory(t *testing.T) {
	fake, srv := newFakeSheets(t)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithTokenSource(staticToken()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	c := NewHistoryClient(svc, "hist-1", "")
	c.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	ref, err := c.AppendHistory(context.Background(), core.HistoryEntry{
		AnalysisID: 7,
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UserEmail:  "ana@example.com",
		Totals:     core.Totals{TotalIncome: 5000, TotalExpenses: 1800, DebtPayments: 300, PaymentCapacity: 3200},
	})
	if err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if !strings.HasSuffix(ref, "A2:I2") {
		t.Errorf("ref = %q", ref)
	}
	if len(fake.appended) != 1 || len(fake.appended[0]) != 9 {
		t.Fatalf("appended = %v", fake.appended)
	}
	if fake.appended[0][2] != "ana@example.com" {
		t.Errorf("row = %v", fake.appended[0])
	}
	if !strings.HasPrefix(fake.appendTo, "2026 Histórico!") {
		t.Errorf("appended to %q", fake.appendTo)
	}

	var nilSvc HistoryClient
	if _, err := nilSvc.AppendHistory(context.Background(), core.HistoryEntry{}); err == nil {
		t.Error("expected error without service")
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("HISTORY_SPREADSHEET_ID", "")
	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing HISTORY_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	for _, k := range []string{
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE", "GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("HISTORY_SPREADSHEET_ID", "hist-1")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "invalid-json")
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", `{"access_token":"test"}`)
	_, err = NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got: %v", err)
	}

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")
	_, err = NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadEnvOrFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/token.json"
	if err := os.WriteFile(path, []byte(`{"access_token":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_TOKEN_JSON", "")
	t.Setenv("TEST_TOKEN_FILE", path)
	b, err := readEnvOrFile("TEST_TOKEN_JSON", "TEST_TOKEN_FILE")
	if err != nil || !strings.Contains(string(b), "access_token") {
		t.Fatalf("readEnvOrFile = %q, %v", b, err)
	}
	t.Setenv("TEST_TOKEN_JSON", "inline")
	b, _ = readEnvOrFile("TEST_TOKEN_JSON", "TEST_TOKEN_FILE")
	if string(b) != "inline" {
		t.Fatalf("inline value not preferred: %q", b)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Histórico", 2026, "2026 Histórico"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.baseName, tt.year); got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}

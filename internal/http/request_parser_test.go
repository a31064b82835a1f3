package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finanzen/internal/core"
)

func formRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseItemParams(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		withField bool
		want      ItemParams
		wantCode  int
	}{
		{
			name:      "update from form",
			body:      "category=debts&id=3&field=endDate&value=2027-01-10",
			withField: true,
			want:      ItemParams{Category: core.Debts, ID: 3, Field: "endDate", Value: "2027-01-10"},
		},
		{
			name:      "update from json",
			body:      `{"category":"income","id":2,"field":"amount","value":"1.234,56"}`,
			withField: true,
			want:      ItemParams{Category: core.Income, ID: 2, Field: "amount", Value: "1.234,56"},
		},
		{
			name: "add needs only category",
			body: "category=Expenses",
			want: ItemParams{Category: core.Expenses},
		},
		{
			name: "remove with id",
			body: "category=income&id=7",
			want: ItemParams{Category: core.Income, ID: 7},
		},
		{name: "unknown category", body: "category=savings&id=1", wantCode: http.StatusBadRequest},
		{name: "bad id", body: "category=income&id=abc", wantCode: http.StatusBadRequest},
		{name: "zero id", body: "category=income&id=0", wantCode: http.StatusBadRequest},
		{name: "update without id", body: "category=income&field=amount", withField: true, wantCode: http.StatusBadRequest},
		{name: "update without field", body: "category=income&id=1", withField: true, wantCode: http.StatusBadRequest},
		{name: "broken json", body: `{"category":`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := formRequest(http.MethodPost, "/items/update", tt.body)
			got, errResp := ParseItemParams(req, tt.withField)
			if tt.wantCode != 0 {
				if errResp == nil {
					t.Fatalf("expected error response, got %+v", got)
				}
				w := httptest.NewRecorder()
				errResp.Write(w)
				if w.Code != tt.wantCode {
					t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
				}
				return
			}
			if errResp != nil {
				t.Fatal("unexpected error response")
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "description": "Aluguel", "amount": 42.5, "flag": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if flag := parser.Get("flag"); flag != "true" {
		t.Errorf("Get('flag') = %q", flag)
	}
	if parser.ContentType() != "application/json" || len(parser.GetRaw()) != len(body) {
		t.Error("raw body or content type not kept")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	req := formRequest(http.MethodPost, "/test", "id=456&description=+Sal%C3%A1rio%01+&value=100")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}
	if d := parser.Get("description"); d != "Salário" {
		t.Errorf("Get('description') = %q, want sanitized 'Salário'", d)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		check   func(*http.Request) *HTMXResponseBuilder
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, RequirePOST, false},
		{"GET rejected by POST guard", http.MethodGet, RequirePOST, true},
		{"HEAD allowed by GET guard", http.MethodHead, RequireGET, false},
		{"POST rejected by GET guard", http.MethodPost, RequireGET, true},
		{"DELETE allowed", http.MethodDelete, RequireDeleteOrPOST, false},
		{"PUT rejected", http.MethodPut, RequireDeleteOrPOST, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := tt.check(req)
			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := formRequest(http.MethodPost, "/forecast", "growthRate=5&monthsToForecast=24")

	if result := ParseFormOrFail(req); result != nil {
		t.Fatal("Expected nil for valid form, got error response")
	}
	if req.Form.Get("monthsToForecast") != "24" {
		t.Error("Form was not parsed correctly")
	}
}

package core

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"income", Income, false},
		{" Expenses ", Expenses, false},
		{"DEBTS", Debts, false},
		{"savings", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseCategory(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleData()
	c := orig.Clone()
	c.Income[0].Amount = 1
	c.Debts[0].Description = "changed"
	c.Expenses = append(c.Expenses, LineItem{ID: 9})

	if orig.Income[0].Amount != 5000 {
		t.Error("income shared with clone")
	}
	if orig.Debts[0].Description != "Cartão de Crédito" {
		t.Error("debts shared with clone")
	}
	if orig.Len(Expenses) != 1 {
		t.Error("expenses shared with clone")
	}
}

func TestLabels(t *testing.T) {
	for _, c := range Categories() {
		if c.Label() == string(c) {
			t.Errorf("category %q has no label", c)
		}
	}
}

package core

import (
	"math"
	"testing"
)

func TestMonthlyGrowthRate(t *testing.T) {
	got := MonthlyGrowthRate(12)
	if math.Abs(got-0.009489) > 1e-6 {
		t.Fatalf("MonthlyGrowthRate(12) = %v, want ~0.009489", got)
	}
	if simple := 0.12 / 12; got >= simple {
		t.Fatalf("compounded rate %v should be below simple division %v", got, simple)
	}
	for _, annual := range []float64{1e-14, 1e-10, 1e-6} {
		if r := MonthlyGrowthRate(annual); r <= 0 {
			t.Errorf("MonthlyGrowthRate(%v) = %v, want a positive rate", annual, r)
		}
	}
}

func TestProjectIncomeClampsHorizon(t *testing.T) {
	for _, months := range []int{MaxForecastMonths + 1, 1_000_000_000, math.MaxInt} {
		points := ProjectIncome(5000, IncomeForecast{GrowthRate: 12, MonthsToForecast: months})
		if len(points) != MaxForecastMonths+1 {
			t.Fatalf("months %d: got %d points, want %d", months, len(points), MaxForecastMonths+1)
		}
		if last := points[len(points)-1]; last.MonthIndex != MaxForecastMonths {
			t.Fatalf("months %d: last index %d", months, last.MonthIndex)
		}
	}
}

func TestClampMonths(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 24: 24, MaxForecastMonths: MaxForecastMonths, math.MaxInt: MaxForecastMonths}
	for in, want := range cases {
		if got := ClampMonths(in); got != want {
			t.Errorf("ClampMonths(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestProjectIncome(t *testing.T) {
	points := ProjectIncome(5000, IncomeForecast{GrowthRate: 12, MonthsToForecast: 12})
	if len(points) != 13 {
		t.Fatalf("expected 13 points, got %d", len(points))
	}
	if points[0].MonthIndex != 0 || points[0].ProjectedIncome != 5000 {
		t.Fatalf("first point = %+v, want {0 5000}", points[0])
	}
	last := points[12]
	if last.MonthIndex != 12 {
		t.Fatalf("last index = %d, want 12", last.MonthIndex)
	}
	if math.Abs(last.ProjectedIncome-5600) > 1e-6 {
		t.Fatalf("projected(12) = %v, want ~5600", last.ProjectedIncome)
	}
	for i := 1; i < len(points); i++ {
		if points[i].MonthIndex != i {
			t.Fatalf("point %d has index %d", i, points[i].MonthIndex)
		}
		if points[i].ProjectedIncome <= points[i-1].ProjectedIncome {
			t.Fatalf("sequence not strictly increasing at %d: %v <= %v",
				i, points[i].ProjectedIncome, points[i-1].ProjectedIncome)
		}
	}
}

func TestProjectIncomeShortCircuit(t *testing.T) {
	tests := []struct {
		name   string
		income float64
		f      IncomeForecast
	}{
		{"zero months", 5000, IncomeForecast{GrowthRate: 10, MonthsToForecast: 0}},
		{"negative months", 5000, IncomeForecast{GrowthRate: 10, MonthsToForecast: -3}},
		{"zero growth", 5000, IncomeForecast{GrowthRate: 0, MonthsToForecast: 12}},
		{"negative growth", 5000, IncomeForecast{GrowthRate: -5, MonthsToForecast: 12}},
		{"zero income", 0, IncomeForecast{GrowthRate: 10, MonthsToForecast: 12}},
		{"negative income", -1, IncomeForecast{GrowthRate: 10, MonthsToForecast: 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectIncome(tt.income, tt.f)
			if got == nil {
				t.Fatal("expected an empty, non-nil slice")
			}
			if len(got) != 0 {
				t.Fatalf("expected no points, got %d", len(got))
			}
		})
	}
}

func TestProjectIncomeMonotonicAcrossRates(t *testing.T) {
	for _, rate := range []float64{0.01, 1, 5.5, 12, 100, 400} {
		points := ProjectIncome(1234.56, IncomeForecast{GrowthRate: rate, MonthsToForecast: 24})
		if len(points) != 25 {
			t.Fatalf("rate %v: expected 25 points, got %d", rate, len(points))
		}
		if points[0].ProjectedIncome != 1234.56 {
			t.Fatalf("rate %v: first point %v", rate, points[0].ProjectedIncome)
		}
		for i := 1; i < len(points); i++ {
			if points[i].ProjectedIncome <= points[i-1].ProjectedIncome {
				t.Fatalf("rate %v: not increasing at %d", rate, i)
			}
		}
	}
}

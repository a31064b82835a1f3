package core

import "math"

// MaxForecastMonths bounds the projection horizon. Longer horizons are
// clamped to it.
const MaxForecastMonths = 600

// ProjectionPoint is the projected monthly income MonthIndex months from now.
type ProjectionPoint struct {
	MonthIndex      int     `json:"monthIndex"`
	ProjectedIncome float64 `json:"projectedIncome"`
}

// MonthlyGrowthRate converts an annual percentage into the equivalent
// effective monthly rate under monthly compounding.
func MonthlyGrowthRate(annualPercent float64) float64 {
	return math.Expm1(math.Log1p(annualPercent/100) / 12)
}

// ClampMonths limits a horizon to the range [0, MaxForecastMonths].
func ClampMonths(months int) int {
	switch {
	case months < 0:
		return 0
	case months > MaxForecastMonths:
		return MaxForecastMonths
	}
	return months
}

// ProjectIncome returns MonthsToForecast+1 points starting at index 0 with
// the current income. Without a positive horizon, income and growth rate
// there is nothing to project and the result is empty. Horizons beyond
// MaxForecastMonths are clamped. Values are not rounded.
func ProjectIncome(totalIncome float64, f IncomeForecast) []ProjectionPoint {
	if f.MonthsToForecast <= 0 || totalIncome <= 0 || f.GrowthRate <= 0 {
		return []ProjectionPoint{}
	}

	months := ClampMonths(f.MonthsToForecast)
	rate := MonthlyGrowthRate(f.GrowthRate)
	points := make([]ProjectionPoint, 0, months+1)
	for i := 0; i <= months; i++ {
		v := totalIncome
		if i > 0 {
			v = totalIncome * math.Pow(1+rate, float64(i))
		}
		points = append(points, ProjectionPoint{MonthIndex: i, ProjectedIncome: v})
	}
	return points
}

package analysis

import (
	"math"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const (
	strongThreshold     = 0.7
	veryStrongThreshold = 0.9
	// InsufficientColumnsReason is reported when correlation is impossible.
	InsufficientColumnsReason = "Need at least 2 numeric columns for correlation"
)

// Correlate computes the Pearson correlation matrix over pairwise-complete
// observations and lists the strong pairs from the upper triangle.
// Undefined coefficients (fewer than two shared points or zero variance)
// are NaN.
func Correlate(t *tabular.Table, numericColumns []string) models.CorrelationReport {
	var cols []string
	var data [][]float64
	for _, name := range numericColumns {
		values, ok := t.Floats(name)
		if !ok {
			continue
		}
		cols = append(cols, name)
		data = append(data, values)
	}

	if len(cols) < 2 {
		return models.CorrelationReport{
			StrongCorrelations: []models.CorrelationPair{},
			InsufficientData:   true,
			Reason:             InsufficientColumnsReason,
		}
	}

	n := len(cols)
	matrix := make([][]models.Coefficient, n)
	for i := range matrix {
		matrix[i] = make([]models.Coefficient, n)
	}

	report := models.CorrelationReport{
		Columns:            cols,
		Matrix:             matrix,
		StrongCorrelations: []models.CorrelationPair{},
	}

	for i := 0; i < n; i++ {
		matrix[i][i] = models.Coefficient(selfCorrelation(data[i]))
		for j := i + 1; j < n; j++ {
			r := Pearson(data[i], data[j])
			matrix[i][j] = models.Coefficient(r)
			matrix[j][i] = models.Coefficient(r)

			if math.IsNaN(r) || math.Abs(r) <= strongThreshold {
				continue
			}
			strength := models.StrengthStrong
			if math.Abs(r) > veryStrongThreshold {
				strength = models.StrengthVeryStrong
			}
			report.StrongCorrelations = append(report.StrongCorrelations, models.CorrelationPair{
				Column1:     cols[i],
				Column2:     cols[j],
				Correlation: round(r, 3),
				Strength:    strength,
			})
		}
	}
	return report
}

// Pearson returns the correlation of x and y over indexes where both are
// present, or NaN when it is undefined.
func Pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if i >= len(y) || math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	xs, _ = scaled(xs)
	ys, _ = scaled(ys)
	mx, my := runningMean(xs), runningMean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	r := sxy / (math.Sqrt(sxx) * math.Sqrt(syy))
	return math.Max(-1, math.Min(1, r))
}

func selfCorrelation(values []float64) float64 {
	valid := dropNaN(values)
	if len(valid) < 2 || allEqual(valid) {
		return math.NaN()
	}
	return 1
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// Package analysis is the statistical engine: column profiling, descriptive
// statistics, IQR outlier detection and Pearson correlation over a parsed
// table. Every function is pure.
package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// ErrNoData is returned by Describe when no valid values remain after
// missing values are dropped.
var ErrNoData = errors.New("no valid data")

// Describe computes descriptive statistics over the non-NaN values.
// Standard deviation and variance use the sample (n-1) form and are 0 for a
// single value. Skewness is 0 below 3 values and kurtosis is 0 below 4.
// Moments are computed on values scaled into [-1, 1], so readings near the
// float64 limit still give a finite mean and standard deviation.
func Describe(values []float64) (models.NumericStats, error) {
	sorted := dropNaN(values)
	if len(sorted) == 0 {
		return models.NumericStats{}, ErrNoData
	}
	sort.Float64s(sorted)

	n := len(sorted)
	ys, scale := scaled(sorted)
	muY := runningMean(ys)
	m2, m3, m4 := centralSums(ys, muY)

	var std, variance float64
	if n > 1 {
		std = math.Sqrt(m2/float64(n-1)) * scale
		variance = m2 / float64(n-1) * scale * scale
	}
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)

	return models.NumericStats{
		Count:    n,
		Mean:     muY * scale,
		Median:   quantile(sorted, 0.5),
		Std:      std,
		Min:      sorted[0],
		Max:      sorted[n-1],
		Q1:       q1,
		Q3:       q3,
		IQR:      q3 - q1,
		Range:    sorted[n-1] - sorted[0],
		Variance: variance,
		Skewness: skewness(n, m2, m3),
		Kurtosis: kurtosis(n, m2, m4),
	}, nil
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// scaled divides values by their largest magnitude. An all-zero input is
// returned unchanged with scale 1.
func scaled(values []float64) ([]float64, float64) {
	var scale float64
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 {
		return append([]float64(nil), values...), 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / scale
	}
	return out, scale
}

// runningMean is the incremental mean m += (x - m) / k.
func runningMean(values []float64) float64 {
	var m float64
	for i, v := range values {
		m += (v - m) / float64(i+1)
	}
	return m
}

func mean(values []float64) float64 {
	ys, scale := scaled(values)
	return runningMean(ys) * scale
}

// quantile uses linear interpolation between closest ranks over sorted
// values (h = (n-1)p).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	a, b := sorted[lo], sorted[hi]
	if lo == hi || a == b {
		return a
	}
	f := h - float64(lo)
	if d := b - a; !math.IsInf(d, 0) {
		return a + f*d
	}
	return a*(1-f) + b*f
}

// centralSums returns the second, third and fourth central moment sums.
func centralSums(values []float64, mu float64) (m2, m3, m4 float64) {
	for _, v := range values {
		d := v - mu
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	return m2, m3, m4
}

// skewness is the adjusted Fisher-Pearson coefficient G1. It is scale
// invariant, so the sums may come from scaled values.
func skewness(count int, m2, m3 float64) float64 {
	n := float64(count)
	if n < 3 || m2 == 0 {
		return 0
	}
	return n * math.Sqrt(n-1) / (n - 2) * m3 / math.Pow(m2, 1.5)
}

// kurtosis is the bias-corrected excess kurtosis G2.
func kurtosis(count int, m2, m4 float64) float64 {
	n := float64(count)
	if n < 4 {
		return 0
	}
	denom := (n - 2) * (n - 3) * m2 * m2
	if denom == 0 {
		return 0
	}
	adj := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return n*(n+1)*(n-1)*m4/denom - adj
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

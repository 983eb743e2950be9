package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

// ErrNonFinite is returned when a statistic of the uploaded values is
// outside the float64 range, such as the variance of readings spanning
// -1e308 to 1e308.
var ErrNonFinite = errors.New("statistics out of numeric range")

// Analyze runs the deep analysis over a table: it re-derives the column
// profile, then computes statistics, outliers and correlation over the
// profiled numeric and categorical columns.
func Analyze(t *tabular.Table) (models.AnalysisResult, error) {
	profile := ProfileColumns(t)
	numeric := profile.ColumnsOfType(models.ColumnTypeNumeric)

	result := models.AnalysisResult{
		Summary:     SummarizeColumns(t, profile),
		Outliers:    DetectOutliers(t, numeric),
		Correlation: Correlate(t, numeric),
	}
	if err := checkFinite(result); err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// checkFinite rejects results that cannot be stored as JSON numbers.
func checkFinite(r models.AnalysisResult) error {
	names := make([]string, 0, len(r.Summary.NumericColumns))
	for name := range r.Summary.NumericColumns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := r.Summary.NumericColumns[name]
		fields := []struct {
			stat  string
			value float64
		}{
			{"mean", st.Mean}, {"median", st.Median}, {"std", st.Std},
			{"min", st.Min}, {"max", st.Max}, {"q1", st.Q1}, {"q3", st.Q3},
			{"iqr", st.IQR}, {"range", st.Range}, {"variance", st.Variance},
			{"skewness", st.Skewness}, {"kurtosis", st.Kurtosis},
		}
		for _, f := range fields {
			if !isFinite(f.value) {
				return fmt.Errorf("%w: column %s (%s)", ErrNonFinite, name, f.stat)
			}
		}
	}

	for name, col := range r.Outliers.ByColumn {
		if !isFinite(col.LowerBound) || !isFinite(col.UpperBound) {
			return fmt.Errorf("%w: column %s (outlier bounds)", ErrNonFinite, name)
		}
	}
	for _, rec := range r.Outliers.Records {
		if !isFinite(rec.ExpectedRange[0]) || !isFinite(rec.ExpectedRange[1]) {
			return fmt.Errorf("%w: column %s (outlier bounds)", ErrNonFinite, rec.Column)
		}
	}
	return nil
}

package analysis

import (
	"math"
	"strings"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const (
	minOutlierPoints  = 4
	iqrMultiplier     = 1.5
	maxColumnExamples = 10
	maxOutlierRecords = 20
)

var (
	equipmentIDColumns   = []string{"equipment name", "equipment_name", "equipment id", "equipment_id", "equipment", "asset", "asset id", "tag"}
	equipmentTypeColumns = []string{"type", "equipment type", "equipment_type"}
)

// DetectOutliers flags values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR] for each
// numeric column with at least four valid points. Detailed records are
// capped across all columns.
func DetectOutliers(t *tabular.Table, numericColumns []string) models.OutlierReport {
	report := models.OutlierReport{
		ByColumn: make(map[string]models.ColumnOutliers),
		Records:  []models.OutlierRecord{},
	}

	idCol := findColumn(t, equipmentIDColumns)
	typeCol := findColumn(t, equipmentTypeColumns)

	for _, name := range numericColumns {
		values, ok := t.Floats(name)
		if !ok {
			continue
		}
		valid := dropNaN(values)
		if len(valid) < minOutlierPoints {
			report.InsufficientData = append(report.InsufficientData, name)
			continue
		}
		st, err := Describe(valid)
		if err != nil {
			continue
		}
		lower := st.Q1 - iqrMultiplier*st.IQR
		upper := st.Q3 + iqrMultiplier*st.IQR

		var rows []int
		for i, v := range values {
			if !math.IsNaN(v) && (v < lower || v > upper) {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			continue
		}

		col := models.ColumnOutliers{
			Count:         len(rows),
			Percent:       round(float64(len(rows))/float64(t.Len())*100, 2),
			LowerBound:    lower,
			UpperBound:    upper,
			OutlierValues: make([]float64, 0, maxColumnExamples),
		}
		for _, r := range rows {
			if len(col.OutlierValues) == maxColumnExamples {
				break
			}
			col.OutlierValues = append(col.OutlierValues, values[r])
		}
		report.ByColumn[name] = col
		report.TotalOutliers += len(rows)

		for _, r := range rows {
			if len(report.Records) == maxOutlierRecords {
				break
			}
			rec := models.OutlierRecord{
				RowIndex:         r,
				Column:           name,
				Value:            values[r],
				ExpectedRange:    [2]float64{lower, upper},
				DeviationPercent: DeviationPercent(values[r], st.Median),
			}
			if idCol >= 0 {
				rec.EquipmentID = t.Rows[r][idCol]
			}
			if typeCol >= 0 {
				rec.EquipmentType = t.Rows[r][typeCol]
			}
			report.Records = append(report.Records, rec)
		}
	}
	return report
}

// DeviationPercent returns |value - median| / |median| * 100 rounded to two
// places, or nil when the median is zero and the ratio is undefined.
func DeviationPercent(value, median float64) *float64 {
	if median == 0 {
		return nil
	}
	d := round(math.Abs(value-median)/math.Abs(median)*100, 2)
	if !isFinite(d) {
		return nil
	}
	return &d
}

// findColumn returns the index of the first header matching one of the
// candidate names case-insensitively, or -1.
func findColumn(t *tabular.Table, candidates []string) int {
	for _, want := range candidates {
		for i, name := range t.Header {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				return i
			}
		}
	}
	return -1
}

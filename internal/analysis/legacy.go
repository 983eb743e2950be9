package analysis

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const (
	ColumnEquipmentName = "Equipment Name"
	ColumnType          = "Type"
	ColumnFlowrate      = "Flowrate"
	ColumnPressure      = "Pressure"
	ColumnTemperature   = "Temperature"
)

// RequiredColumns must all be present for the legacy summary.
var RequiredColumns = []string{ColumnEquipmentName, ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}

var (
	// ErrNoValidRows is returned when every row misses a required value.
	ErrNoValidRows = errors.New("no valid data found in CSV file after removing rows with missing values")
	// ErrNonNumericColumn is returned when a parameter column holds text.
	ErrNonNumericColumn = errors.New("non-numeric values in parameter column")
)

// LegacySummary validates the required equipment columns and summarizes
// the rows that have a value for every one of them.
func LegacySummary(t *tabular.Table) (models.LegacySummary, error) {
	if err := t.RequireColumns(RequiredColumns...); err != nil {
		return models.LegacySummary{}, err
	}

	idx := make([]int, len(RequiredColumns))
	for i, name := range RequiredColumns {
		idx[i], _ = t.ColumnIndex(name)
	}
	typeIdx, flowIdx, pressIdx, tempIdx := idx[1], idx[2], idx[3], idx[4]

	summary := models.LegacySummary{TypeDistribution: make(map[string]int)}
	var flow, press, temp []float64
	first := true

	for line, row := range t.Rows {
		if hasMissing(row, idx) {
			continue
		}
		var p models.ParameterRange
		var err error
		if p.Flowrate, err = parseParameter(row[flowIdx], ColumnFlowrate, line+1); err != nil {
			return models.LegacySummary{}, err
		}
		if p.Pressure, err = parseParameter(row[pressIdx], ColumnPressure, line+1); err != nil {
			return models.LegacySummary{}, err
		}
		if p.Temperature, err = parseParameter(row[tempIdx], ColumnTemperature, line+1); err != nil {
			return models.LegacySummary{}, err
		}

		summary.TotalCount++
		summary.TypeDistribution[row[typeIdx]]++
		flow = append(flow, p.Flowrate)
		press = append(press, p.Pressure)
		temp = append(temp, p.Temperature)
		if first {
			summary.MinValues, summary.MaxValues = p, p
			first = false
			continue
		}
		summary.MinValues = models.ParameterRange{
			Flowrate:    min(summary.MinValues.Flowrate, p.Flowrate),
			Pressure:    min(summary.MinValues.Pressure, p.Pressure),
			Temperature: min(summary.MinValues.Temperature, p.Temperature),
		}
		summary.MaxValues = models.ParameterRange{
			Flowrate:    max(summary.MaxValues.Flowrate, p.Flowrate),
			Pressure:    max(summary.MaxValues.Pressure, p.Pressure),
			Temperature: max(summary.MaxValues.Temperature, p.Temperature),
		}
	}

	if summary.TotalCount == 0 {
		return models.LegacySummary{}, ErrNoValidRows
	}
	summary.Averages = models.ParameterRange{
		Flowrate:    mean(flow),
		Pressure:    mean(press),
		Temperature: mean(temp),
	}
	return summary, nil
}

func hasMissing(row []string, idx []int) bool {
	for _, i := range idx {
		if tabular.IsMissing(row[i]) {
			return true
		}
	}
	return false
}

func parseParameter(cell, column string, row int) (float64, error) {
	v, ok := tabular.ParseFloat(cell)
	if !ok {
		return 0, fmt.Errorf("%w: %s row %d value %q", ErrNonNumericColumn, column, row, cell)
	}
	return v, nil
}

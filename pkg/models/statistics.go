package models

import (
	"encoding/json"
	"math"
)

const (
	ColumnTypeNumeric     = "numeric"
	ColumnTypeTemporal    = "temporal"
	ColumnTypeCategorical = "categorical"
	ColumnTypeText        = "text"
)

// ColumnInfo describes one column of an uploaded table.
type ColumnInfo struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	MissingCount   int      `json:"missing_count"`
	MissingPercent float64  `json:"missing_percent"`
	UniqueCount    int      `json:"unique_count"`
	SampleValues   []string `json:"sample_values"`
}

// ColumnProfile is the phase-1 view of a table's shape.
type ColumnProfile struct {
	TotalColumns int          `json:"total_columns"`
	TotalRows    int          `json:"total_rows"`
	Columns      []ColumnInfo `json:"columns"`
}

// ColumnsOfType returns the names of profiled columns with the given type,
// in table order.
func (p ColumnProfile) ColumnsOfType(columnType string) []string {
	var names []string
	for _, c := range p.Columns {
		if c.Type == columnType {
			names = append(names, c.Name)
		}
	}
	return names
}

// LegacySummary is the fixed-schema summary over the required equipment
// columns.
type LegacySummary struct {
	TotalCount       int            `json:"total_count"`
	Averages         ParameterRange `json:"averages"`
	TypeDistribution map[string]int `json:"type_distribution"`
	MinValues        ParameterRange `json:"min_values"`
	MaxValues        ParameterRange `json:"max_values"`
}

// ParameterRange holds one value per required equipment parameter.
type ParameterRange struct {
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// NumericStats are the descriptive statistics of one numeric column after
// missing values are dropped.
type NumericStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	IQR      float64 `json:"iqr"`
	Range    float64 `json:"range"`
	Variance float64 `json:"variance"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// CategoricalStats holds the value distribution of a categorical column.
type CategoricalStats struct {
	Distribution map[string]int `json:"distribution"`
	UniqueCount  int            `json:"unique_count"`
}

// StatisticalSummary is the phase-2 summary of a table. Numeric columns
// without a single valid value are listed in NoDataColumns instead of
// NumericColumns.
type StatisticalSummary struct {
	TotalRecords            int                         `json:"total_records"`
	TotalColumns            int                         `json:"total_columns"`
	NumericColumnsCount     int                         `json:"numeric_columns_count"`
	CategoricalColumnsCount int                         `json:"categorical_columns_count"`
	NumericColumns          map[string]NumericStats     `json:"numeric_columns"`
	CategoricalColumns      map[string]CategoricalStats `json:"categorical_columns"`
	NoDataColumns           []string                    `json:"no_data_columns,omitempty"`
}

// ColumnOutliers summarizes the IQR outliers of one column.
type ColumnOutliers struct {
	Count         int       `json:"count"`
	Percent       float64   `json:"percent"`
	LowerBound    float64   `json:"lower_bound"`
	UpperBound    float64   `json:"upper_bound"`
	OutlierValues []float64 `json:"outlier_values"`
}

// OutlierRecord is one flagged row value. DeviationPercent is nil when the
// column median is zero.
type OutlierRecord struct {
	RowIndex         int        `json:"row_index"`
	Column           string     `json:"column"`
	Value            float64    `json:"value"`
	ExpectedRange    [2]float64 `json:"expected_range"`
	DeviationPercent *float64   `json:"deviation_percent"`
	EquipmentID      string     `json:"equipment_id,omitempty"`
	EquipmentType    string     `json:"equipment_type,omitempty"`
}

// OutlierReport is the IQR outlier analysis of every numeric column.
// Columns with fewer than four valid points are listed in
// InsufficientData and skipped.
type OutlierReport struct {
	TotalOutliers    int                       `json:"total_outliers"`
	ByColumn         map[string]ColumnOutliers `json:"by_column"`
	Records          []OutlierRecord           `json:"outlier_records"`
	InsufficientData []string                  `json:"insufficient_data,omitempty"`
}

const (
	StrengthStrong     = "strong"
	StrengthVeryStrong = "very strong"
)

// Coefficient is a correlation coefficient. An undefined coefficient is NaN
// and encodes as JSON null.
type Coefficient float64

func (c Coefficient) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (c *Coefficient) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Coefficient(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Coefficient(f)
	return nil
}

// CorrelationPair is one strongly correlated pair of distinct columns.
type CorrelationPair struct {
	Column1     string  `json:"column1"`
	Column2     string  `json:"column2"`
	Correlation float64 `json:"correlation"`
	Strength    string  `json:"strength"`
}

// CorrelationReport is the Pearson correlation analysis of the numeric
// columns. When fewer than two numeric columns exist, InsufficientData is
// set with a Reason and the matrix is absent.
type CorrelationReport struct {
	Columns            []string          `json:"columns,omitempty"`
	Matrix             [][]Coefficient   `json:"matrix,omitempty"`
	StrongCorrelations []CorrelationPair `json:"strong_correlations"`
	InsufficientData   bool              `json:"insufficient_data,omitempty"`
	Reason             string            `json:"error,omitempty"`
}

// StatsCards are the headline numbers shown for a dataset.
type StatsCards struct {
	TotalRecords   int     `json:"total_records"`
	AvgPressure    float64 `json:"avg_pressure"`
	AvgTemperature float64 `json:"avg_temperature"`
	AvgFlowrate    float64 `json:"avg_flowrate"`
}

package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const plantCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
Pump-1,Pump,10,100,12
Pump-2,Pump,20,102,19
Valve-1,Valve,30,98,33
Valve-2,Valve,40,101,41
Reactor-1,Reactor,50,1000,48
`

func mustTable(t *testing.T, csv string) *tabular.Table {
	t.Helper()
	tbl, err := tabular.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

// --- Describe ---

func TestDescribe(t *testing.T) {
	st, err := Describe([]float64{5, 1, math.NaN(), 3, 2, 4})
	require.NoError(t, err)

	assert.Equal(t, 5, st.Count)
	assert.InDelta(t, 3.0, st.Mean, 1e-12)
	assert.InDelta(t, 3.0, st.Median, 1e-12)
	assert.InDelta(t, 2.5, st.Variance, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), st.Std, 1e-12)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 5.0, st.Max)
	assert.Equal(t, 2.0, st.Q1)
	assert.Equal(t, 4.0, st.Q3)
	assert.Equal(t, 2.0, st.IQR)
	assert.Equal(t, 4.0, st.Range)
	assert.InDelta(t, 0.0, st.Skewness, 1e-12)
	assert.InDelta(t, -1.2, st.Kurtosis, 1e-12)
}

func TestDescribe_InterpolatedQuartiles(t *testing.T) {
	st, err := Describe([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.75, st.Q1, 1e-12)
	assert.InDelta(t, 3.25, st.Q3, 1e-12)
	assert.InDelta(t, 2.5, st.Median, 1e-12)
}

func TestDescribe_Skewness(t *testing.T) {
	st, err := Describe([]float64{1, 2, 10})
	require.NoError(t, err)
	assert.InDelta(t, 1.6523167, st.Skewness, 1e-6)
	assert.Equal(t, 0.0, st.Kurtosis)
}

func TestDescribe_SmallSamples(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"one value", []float64{42}},
		{"two values", []float64{-1e9, 7}},
		{"three values", []float64{0.001, 50, 9e6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Describe(tt.values)
			require.NoError(t, err)
			if len(tt.values) < 3 {
				assert.Equal(t, 0.0, st.Skewness)
			}
			assert.Equal(t, 0.0, st.Kurtosis)
		})
	}

	st, err := Describe([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Std)
	assert.Equal(t, 0.0, st.Variance)
}

func TestDescribe_ConstantColumn(t *testing.T) {
	st, err := Describe([]float64{3, 3, 3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Skewness)
	assert.Equal(t, 0.0, st.Kurtosis)
	assert.Equal(t, 0.0, st.IQR)
}

func TestDescribe_NoData(t *testing.T) {
	_, err := Describe([]float64{math.NaN(), math.NaN()})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Describe(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

// --- ProfileColumns ---

func TestProfileColumns(t *testing.T) {
	tbl := mustTable(t, `Equipment Name,Type,Pressure,Installed,Notes
P-1,Pump,5.1,2024-01-01,ok
P-2,Pump,,2024-02-01,leaking
P-3,Pump,5.3,2024-03-01,ok
V-1,Valve,4.0,2024-04-01,replaced seal
V-2,Pump,NA,2024-05-01,ok
V-3,Pump,4.4,2024-06-01,noisy
`)
	profile := ProfileColumns(tbl)

	assert.Equal(t, 5, profile.TotalColumns)
	assert.Equal(t, 6, profile.TotalRows)
	require.Len(t, profile.Columns, 5)

	byName := make(map[string]models.ColumnInfo)
	for _, c := range profile.Columns {
		byName[c.Name] = c
	}

	assert.Equal(t, models.ColumnTypeText, byName["Equipment Name"].Type)
	assert.Equal(t, []string{"P-1", "P-2", "P-3"}, byName["Equipment Name"].SampleValues)

	typ := byName["Type"]
	assert.Equal(t, models.ColumnTypeCategorical, typ.Type)
	assert.Equal(t, 2, typ.UniqueCount)
	assert.Equal(t, []string{"Pump", "Valve"}, typ.SampleValues)

	pressure := byName["Pressure"]
	assert.Equal(t, models.ColumnTypeNumeric, pressure.Type)
	assert.Equal(t, 2, pressure.MissingCount)
	assert.Equal(t, 33.33, pressure.MissingPercent)
	assert.Equal(t, 4, pressure.UniqueCount)
	assert.Equal(t, []string{"5.1", "5.3", "4.0"}, pressure.SampleValues)

	assert.Equal(t, models.ColumnTypeTemporal, byName["Installed"].Type)
	assert.Equal(t, models.ColumnTypeText, byName["Notes"].Type)
}

// --- SummarizeColumns ---

func TestSummarizeColumns_NoDataColumn(t *testing.T) {
	tbl := mustTable(t, "a,b,kind\n1,,x\n2,,x\n3,,x\n4,,y\n5,,x\n6,,x\n")
	profile := ProfileColumns(tbl)
	summary := SummarizeColumns(tbl, profile)

	assert.Equal(t, 6, summary.TotalRecords)
	assert.Equal(t, 2, summary.NumericColumnsCount)
	assert.Equal(t, 1, summary.CategoricalColumnsCount)
	assert.Contains(t, summary.NumericColumns, "a")
	assert.NotContains(t, summary.NumericColumns, "b")
	assert.Equal(t, []string{"b"}, summary.NoDataColumns)
	assert.Equal(t, map[string]int{"x": 5, "y": 1}, summary.CategoricalColumns["kind"].Distribution)
}

// --- DetectOutliers ---

func TestDetectOutliers_SinglePressureSpike(t *testing.T) {
	tbl := mustTable(t, plantCSV)
	report := DetectOutliers(tbl, []string{"Flowrate", "Pressure", "Temperature"})

	assert.Equal(t, 1, report.TotalOutliers)
	require.Contains(t, report.ByColumn, "Pressure")
	col := report.ByColumn["Pressure"]
	assert.Equal(t, 1, col.Count)
	assert.Equal(t, 20.0, col.Percent)
	assert.InDelta(t, 97.0, col.LowerBound, 1e-9)
	assert.InDelta(t, 105.0, col.UpperBound, 1e-9)
	assert.Equal(t, []float64{1000}, col.OutlierValues)

	require.Len(t, report.Records, 1)
	rec := report.Records[0]
	assert.Equal(t, 4, rec.RowIndex)
	assert.Equal(t, "Pressure", rec.Column)
	assert.Equal(t, 1000.0, rec.Value)
	assert.Equal(t, "Reactor-1", rec.EquipmentID)
	assert.Equal(t, "Reactor", rec.EquipmentType)
	require.NotNil(t, rec.DeviationPercent)
	assert.Equal(t, 890.1, *rec.DeviationPercent)
}

func TestDetectOutliers_BoundsPartitionValues(t *testing.T) {
	values := []float64{3, 7, 8, 5, 12, 14, 21, 13, 18, -40, 6, 95, 11, 9, 10}
	var b strings.Builder
	b.WriteString("v\n")
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteString("\n")
	}
	tbl := mustTable(t, b.String())
	report := DetectOutliers(tbl, []string{"v"})

	col := report.ByColumn["v"]
	flagged := make(map[float64]bool)
	for _, v := range col.OutlierValues {
		flagged[v] = true
		assert.True(t, v < col.LowerBound || v > col.UpperBound, "outlier %v inside bounds", v)
	}
	for _, v := range values {
		if !flagged[v] {
			assert.True(t, v >= col.LowerBound && v <= col.UpperBound, "non-outlier %v outside bounds", v)
		}
	}
	assert.Equal(t, 2, col.Count)
}

func TestDetectOutliers_InsufficientPoints(t *testing.T) {
	tbl := mustTable(t, "a\n1\n2\n900\n\n")
	report := DetectOutliers(tbl, []string{"a"})
	assert.Equal(t, 0, report.TotalOutliers)
	assert.Equal(t, []string{"a"}, report.InsufficientData)
	assert.Empty(t, report.Records)
}

func TestDetectOutliers_RecordCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b,c\n")
	for i := 0; i < 50; i++ {
		b.WriteString("1,1,1\n")
	}
	for i := 0; i < 10; i++ {
		b.WriteString("500,500,500\n")
	}
	tbl := mustTable(t, b.String())
	report := DetectOutliers(tbl, []string{"a", "b", "c"})

	assert.Equal(t, 30, report.TotalOutliers)
	assert.Len(t, report.Records, 20)
	assert.Len(t, report.ByColumn["a"].OutlierValues, 10)
}

func TestDeviationPercent(t *testing.T) {
	assert.Nil(t, DeviationPercent(5, 0))

	d := DeviationPercent(150, 100)
	require.NotNil(t, d)
	assert.Equal(t, 50.0, *d)

	d = DeviationPercent(-50, -100)
	require.NotNil(t, d)
	assert.Equal(t, 50.0, *d)
}

// --- Correlate ---

func TestCorrelate(t *testing.T) {
	tbl := mustTable(t, plantCSV)
	report := Correlate(tbl, []string{"Flowrate", "Pressure", "Temperature"})

	require.False(t, report.InsufficientData)
	require.Len(t, report.Matrix, 3)
	for i := range report.Matrix {
		assert.Equal(t, models.Coefficient(1), report.Matrix[i][i])
		for j := range report.Matrix {
			assert.Equal(t, report.Matrix[i][j], report.Matrix[j][i])
		}
	}

	require.Len(t, report.StrongCorrelations, 2)
	assert.Equal(t, models.CorrelationPair{
		Column1: "Flowrate", Column2: "Pressure", Correlation: 0.707, Strength: models.StrengthStrong,
	}, report.StrongCorrelations[0])
	assert.Equal(t, models.CorrelationPair{
		Column1: "Flowrate", Column2: "Temperature", Correlation: 0.992, Strength: models.StrengthVeryStrong,
	}, report.StrongCorrelations[1])
}

func TestCorrelate_InsufficientColumns(t *testing.T) {
	tbl := mustTable(t, "name,v\na,1\nb,2\n")
	report := Correlate(tbl, []string{"v"})

	assert.True(t, report.InsufficientData)
	assert.Equal(t, InsufficientColumnsReason, report.Reason)
	assert.Nil(t, report.Matrix)
	assert.NotNil(t, report.StrongCorrelations)
}

func TestCorrelate_ZeroVariance(t *testing.T) {
	tbl := mustTable(t, "a,b\n1,5\n2,5\n3,5\n")
	report := Correlate(tbl, []string{"a", "b"})

	assert.Equal(t, models.Coefficient(1), report.Matrix[0][0])
	assert.True(t, math.IsNaN(float64(report.Matrix[1][1])))
	assert.True(t, math.IsNaN(float64(report.Matrix[0][1])))
	assert.Empty(t, report.StrongCorrelations)
}

func TestPearson_PairwiseComplete(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4}
	y := []float64{2, 4, 100, 8}
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)
	assert.True(t, math.IsNaN(Pearson([]float64{1}, []float64{2})))
}

// --- LegacySummary ---

func TestLegacySummary(t *testing.T) {
	tbl := mustTable(t, plantCSV+"Broken,Pump,,5,5\n")
	summary, err := LegacySummary(tbl)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalCount)
	assert.Equal(t, map[string]int{"Pump": 2, "Valve": 2, "Reactor": 1}, summary.TypeDistribution)
	assert.InDelta(t, 30.0, summary.Averages.Flowrate, 1e-9)
	assert.InDelta(t, 280.2, summary.Averages.Pressure, 1e-9)
	assert.Equal(t, 98.0, summary.MinValues.Pressure)
	assert.Equal(t, 1000.0, summary.MaxValues.Pressure)
	assert.Equal(t, 12.0, summary.MinValues.Temperature)
}

func TestLegacySummary_Errors(t *testing.T) {
	_, err := LegacySummary(mustTable(t, "Equipment Name,Type\nP,Pump\n"))
	require.ErrorIs(t, err, tabular.ErrMissingColumns)
	assert.Contains(t, err.Error(), "Flowrate, Pressure, Temperature")

	_, err = LegacySummary(mustTable(t, "Equipment Name,Type,Flowrate,Pressure,Temperature\nP,Pump,,1,1\n"))
	assert.ErrorIs(t, err, ErrNoValidRows)

	_, err = LegacySummary(mustTable(t, "Equipment Name,Type,Flowrate,Pressure,Temperature\nP,Pump,fast,1,1\n"))
	assert.ErrorIs(t, err, ErrNonNumericColumn)
}

// --- Analyze ---

func TestAnalyze(t *testing.T) {
	result, err := Analyze(mustTable(t, plantCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Summary.TotalRecords)
	assert.Equal(t, 3, result.Summary.NumericColumnsCount)
	assert.Equal(t, 1, result.Outliers.TotalOutliers)
	assert.Equal(t, []string{"Flowrate", "Pressure", "Temperature"}, result.Correlation.Columns)
}

// --- Extreme values ---

const extremeCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
Pump-1,Pump,1e308,100,12
Pump-2,Pump,1e308,102,19
Valve-1,Valve,1e308,98,33
`

func TestDescribe_ExtremeValuesStayFinite(t *testing.T) {
	st, err := Describe([]float64{1e308, 1e308, 1e308})
	require.NoError(t, err)
	assert.Equal(t, 1e308, st.Mean)
	assert.Equal(t, 0.0, st.Std)
	assert.Equal(t, 0.0, st.Variance)
	assert.Equal(t, 0.0, st.IQR)

	st, err = Describe([]float64{1.5e308, 1.6e308, 1.7e308, 1.2e308})
	require.NoError(t, err)
	assert.InEpsilon(t, 1.5e308, st.Mean, 1e-12)
	assert.False(t, math.IsInf(st.Std, 0))
	assert.Less(t, st.Skewness, 0.0)
	assert.InEpsilon(t, 1.55e308, st.Median, 1e-12)
}

func TestLegacySummary_ExtremeValues(t *testing.T) {
	summary, err := LegacySummary(mustTable(t, extremeCSV))
	require.NoError(t, err)
	assert.Equal(t, 1e308, summary.Averages.Flowrate)
	assert.InDelta(t, 100.0, summary.Averages.Pressure, 1e-9)
}

func TestAnalyze_ExtremeValuesEncode(t *testing.T) {
	result, err := Analyze(mustTable(t, extremeCSV))
	require.NoError(t, err)
	assert.Equal(t, 1e308, result.Summary.NumericColumns["Flowrate"].Mean)

	_, err = json.Marshal(result)
	assert.NoError(t, err)
}

func TestAnalyze_OutOfRangeStatistics(t *testing.T) {
	csv := `Equipment Name,Type,Flowrate,Pressure,Temperature
Pump-1,Pump,-1e308,100,12
Pump-2,Pump,1e308,102,19
Valve-1,Valve,1e308,98,33
`
	_, err := Analyze(mustTable(t, csv))
	require.ErrorIs(t, err, ErrNonFinite)
	assert.Contains(t, err.Error(), "column Flowrate")
}

func TestPearson_ExtremeValues(t *testing.T) {
	x := []float64{1e308, 5e307, -1e308}
	y := []float64{1, 0.5, -1}
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)
}

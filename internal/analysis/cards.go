package analysis

import (
	"sort"
	"strings"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Cards derives the stats cards of a dataset. Averages come from the
// phase-2 summary, matching numeric columns by case-insensitive name, and
// from the legacy summary when phase 2 has not run. The first matching
// column in name order wins.
func Cards(summary *models.StatisticalSummary, legacy *models.LegacySummary) models.StatsCards {
	var cards models.StatsCards
	switch {
	case summary != nil:
		cards.TotalRecords = summary.TotalRecords

		names := make([]string, 0, len(summary.NumericColumns))
		for name := range summary.NumericColumns {
			names = append(names, name)
		}
		sort.Strings(names)

		var pressure, temperature, flow bool
		for _, name := range names {
			mean := summary.NumericColumns[name].Mean
			lower := strings.ToLower(name)
			switch {
			case strings.Contains(lower, "pressure"):
				if !pressure {
					cards.AvgPressure, pressure = mean, true
				}
			case strings.Contains(lower, "temperature"):
				if !temperature {
					cards.AvgTemperature, temperature = mean, true
				}
			case strings.Contains(lower, "flow"):
				if !flow {
					cards.AvgFlowrate, flow = mean, true
				}
			}
		}
	case legacy != nil:
		cards.TotalRecords = legacy.TotalCount
		cards.AvgPressure = legacy.Averages.Pressure
		cards.AvgTemperature = legacy.Averages.Temperature
		cards.AvgFlowrate = legacy.Averages.Flowrate
	}
	return cards
}

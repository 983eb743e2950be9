package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Character budgets for JSON embedded in prompts.
const (
	summaryStatsBudget       = 1500
	summaryOutliersBudget    = 800
	summaryCorrelationBudget = 800
	optimizationStatsBudget  = 1200
)

const systemPrompt = "You are an expert chemical process engineer who analyzes equipment parameter data. Be specific and concise."

func suggestionsPrompt(profile models.ColumnProfile) string {
	return fmt.Sprintf(`Dataset Structure:
- Numeric columns: %s
- Categorical columns: %s
- Time-based columns: %s

Task: Suggest 3-5 of the most valuable analyses to run on this data.

For each suggestion, provide:
1. A descriptive title
2. Why this analysis is important for chemical equipment monitoring
3. Which chart type to use (scatter, line, bar, heatmap, box)
4. Which columns to analyze (x_axis, y_axis)
5. Priority level (high, medium, low)

Return ONLY valid JSON in this format:
{
  "suggestions": [
    {
      "title": "Temperature-Pressure Correlation",
      "description": "Analyze relationship between reactor temperature and system pressure",
      "chart_type": "scatter",
      "x_axis": "Temperature",
      "y_axis": "Pressure",
      "priority": "high",
      "reasoning": "Strong correlations indicate..."
    }
  ]
}`,
		joinOrNone(profile.ColumnsOfType(models.ColumnTypeNumeric)),
		joinOrNone(profile.ColumnsOfType(models.ColumnTypeCategorical)),
		joinOrNone(profile.ColumnsOfType(models.ColumnTypeTemporal)),
	)
}

func executiveSummaryPrompt(in models.NarrativeInput) string {
	return fmt.Sprintf(`Statistical Summary:
- Total Records: %d
- Numeric Columns: %d
- Outliers Detected: %d
- Strong Correlations: %d

Detailed Data:
%s

Outliers:
%s

Strong Correlations:
%s

Task: Write a concise 3-paragraph executive summary for a plant manager.

Paragraph 1: Overall data quality and key statistics
Paragraph 2: Critical anomalies and their potential implications
Paragraph 3: Notable correlations and what they mean for operations

Then provide 3 specific, actionable recommendations.

Return ONLY valid JSON:
{
  "executive_summary": "**Overall Assessment:**\n\n[paragraph 1]\n\n**Critical Findings:**\n\n[paragraph 2]\n\n**Process Insights:**\n\n[paragraph 3]",
  "risk_level": "low|medium|high",
  "key_metrics": [
    {"metric": "Average Temperature", "value": "325.5 °C", "status": "normal|warning|critical"}
  ],
  "recommendations": [
    "Inspect equipment X for...",
    "Monitor parameter Y...",
    "Consider process optimization..."
  ],
  "anomalies_count": 3,
  "correlations_count": 2
}`,
		in.Summary.TotalRecords,
		in.Summary.NumericColumnsCount,
		in.Outliers.TotalOutliers,
		len(in.Correlation.StrongCorrelations),
		embedJSON(in.Summary.NumericColumns, summaryStatsBudget),
		embedJSON(in.Outliers.ByColumn, summaryOutliersBudget),
		embedJSON(in.Correlation.StrongCorrelations, summaryCorrelationBudget),
	)
}

func explanationPrompt(q models.OutlierQuery) string {
	return fmt.Sprintf(`You are a chemical equipment maintenance expert.

Equipment: %s (Type: %s)
Parameter: %s
Measured Value: %g
Expected Range: %g to %g

This value is OUTSIDE the normal range.

Provide 3 possible causes for this anomaly in a chemical plant context.
Be specific to the equipment type and parameter.
Keep each explanation to 1-2 sentences.

Format as a numbered list.`,
		q.EquipmentName, q.EquipmentType, q.Parameter, q.Value, q.ExpectedRange[0], q.ExpectedRange[1])
}

func optimizationPrompt(summary models.StatisticalSummary) string {
	return fmt.Sprintf(`You are a process optimization consultant for chemical plants.

Equipment Data Summary:
%s

Task: Suggest 2-3 specific areas for process optimization or energy savings.

For each suggestion:
1. Title (concise)
2. Description (2-3 sentences)
3. Expected benefit (energy savings %%, quality improvement, etc.)
4. Implementation difficulty (easy, medium, hard)

Return ONLY valid JSON:
{
  "optimizations": [
    {
      "title": "Heat Recovery Optimization",
      "description": "...",
      "expected_benefit": "15-20%% steam savings",
      "difficulty": "medium",
      "priority": "high|medium|low"
    }
  ]
}`, embedJSON(summary.NumericColumns, optimizationStatsBudget))
}

// embedJSON renders v as indented JSON cut to budget bytes.
func embedJSON(v any, budget int) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return truncateString(string(b), budget)
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

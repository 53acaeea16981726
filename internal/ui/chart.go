package ui

import (
	"sheetledger/internal/core"
)

// Palette is cycled through by category order.
var Palette = []string{"#A8C3B9", "#C1B2C8", "#D8B4A6", "#B9C8C4", "#E6D3CF"}

// ChartData feeds the category pie. The page script hands Labels, Values
// and Colors to Chart.js as one dataset.
type ChartData struct {
	Month  string       `json:"month"`
	Labels []string     `json:"labels"`
	Values []core.Money `json:"values"`
	Colors []string     `json:"colors"`
	Total  string       `json:"total"`
}

// Empty reports whether there is nothing to draw.
func (c ChartData) Empty() bool {
	return len(c.Labels) == 0
}

// BuildChartData sums the filtered records per category, in first-seen
// order. Categories whose total is not positive cannot be drawn as a slice
// and are left out.
func BuildChartData(filtered []core.ExpenseRecord, month string) ChartData {
	chart := ChartData{
		Month:  month,
		Labels: make([]string, 0),
		Values: make([]core.Money, 0),
		Colors: make([]string, 0),
	}
	var total int64
	for _, c := range core.TotalsByCategory(filtered) {
		if c.Amount.Cents <= 0 {
			continue
		}
		chart.Colors = append(chart.Colors, Palette[len(chart.Labels)%len(Palette)])
		chart.Labels = append(chart.Labels, c.Name)
		chart.Values = append(chart.Values, c.Amount)
		total = core.AddCents(total, c.Amount.Cents)
	}
	chart.Total = FormatMoney(core.Money{Cents: total})
	return chart
}

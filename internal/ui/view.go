package ui

import (
	"sheetledger/internal/core"
)

// AllMonthsLabel is shown for the empty month filter.
const AllMonthsLabel = "All months"

type (
	RecordRow struct {
		Row      int
		Date     string // YYYY/MM/DD
		Category string
		Amount   string // form value, units
		Note     string
	}

	RecordsView struct {
		Month string
		Rows  []RecordRow
		Total string
	}

	MonthOption struct {
		Value    string
		Label    string
		Selected bool
	}

	BudgetView struct {
		core.Progress
		BudgetText string
		SpentText  string
		Month      string
	}

	// View bundles everything a full render of the current state needs.
	View struct {
		Mode    ViewMode
		Month   string
		Records RecordsView
		Chart   ChartData
		Budget  BudgetView
		Months  []MonthOption
	}
)

// Build renders the current state against the cached records.
func Build(st Snapshot, records []core.ExpenseRecord) View {
	filtered := core.FilterByMonth(records, st.Month)
	v := View{
		Mode:   st.View,
		Month:  st.Month,
		Budget: BuildBudgetView(st.Budget, filtered, st.Month),
		Months: BuildMonthOptions(records, st.Month),
	}
	if st.View == ViewReport {
		v.Chart = BuildChartData(filtered, st.Month)
	} else {
		v.Records = BuildRecordsView(filtered, st.Month)
	}
	return v
}

// BuildRecordsView lays out already filtered records with their total.
func BuildRecordsView(filtered []core.ExpenseRecord, month string) RecordsView {
	rows := make([]RecordRow, 0, len(filtered))
	for _, r := range filtered {
		rows = append(rows, RecordRow{
			Row:      r.Row,
			Date:     r.DisplayDate(),
			Category: r.Category,
			Amount:   r.Amount.String(),
			Note:     r.Note,
		})
	}
	return RecordsView{
		Month: month,
		Rows:  rows,
		Total: FormatMoney(core.TotalOf(filtered)),
	}
}

// BuildMonthOptions lists the all-months sentinel followed by every month
// present in records.
func BuildMonthOptions(records []core.ExpenseRecord, selected string) []MonthOption {
	months := core.MonthsPresent(records)
	opts := make([]MonthOption, 0, len(months)+1)
	opts = append(opts, MonthOption{Value: "", Label: AllMonthsLabel, Selected: selected == ""})
	for _, m := range months {
		opts = append(opts, MonthOption{Value: m, Label: m, Selected: m == selected})
	}
	return opts
}

// BuildBudgetView compares the filtered total with the budget.
func BuildBudgetView(b core.Budget, filtered []core.ExpenseRecord, month string) BudgetView {
	spent := core.TotalOf(filtered)
	p := b.Progress(spent)
	v := BudgetView{
		Progress:  p,
		SpentText: FormatMoney(spent),
		Month:     month,
	}
	if p.Set {
		v.BudgetText = FormatMoney(p.Budget)
	}
	return v
}

// FormatMoney renders an amount with two decimals.
func FormatMoney(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

package core

import (
	"math"
	"sort"
	"strings"
)

// MonthsPresent returns the distinct YYYY-MM prefixes of the record dates in
// ascending order. Records with an empty date contribute nothing.
func MonthsPresent(records []ExpenseRecord) []string {
	seen := map[string]struct{}{}
	months := make([]string, 0)
	for _, r := range records {
		m := r.Month()
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// FilterByMonth returns the records whose date starts with month, in cache
// order. An empty month selects every record.
func FilterByMonth(records []ExpenseRecord, month string) []ExpenseRecord {
	if month == "" {
		out := make([]ExpenseRecord, len(records))
		copy(out, records)
		return out
	}
	out := make([]ExpenseRecord, 0, len(records))
	for _, r := range records {
		if strings.HasPrefix(r.Date, month) {
			out = append(out, r)
		}
	}
	return out
}

// TotalOf sums the amounts of records. The sum saturates at the int64
// bounds instead of wrapping.
func TotalOf(records []ExpenseRecord) Money {
	var total int64
	for _, r := range records {
		total = AddCents(total, r.Amount.Cents)
	}
	return Money{Cents: total}
}

// AddCents adds two cent amounts, clamping to the int64 range on overflow.
func AddCents(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}

// TotalsByCategory sums amounts per category, preserving first-seen order.
func TotalsByCategory(records []ExpenseRecord) []CategoryAmount {
	byCat := map[string]int64{}
	order := make([]string, 0)
	for _, r := range records {
		if _, seen := byCat[r.Category]; !seen {
			order = append(order, r.Category)
		}
		byCat[r.Category] = AddCents(byCat[r.Category], r.Amount.Cents)
	}
	list := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		list = append(list, CategoryAmount{Name: name, Amount: Money{Cents: byCat[name]}})
	}
	return list
}

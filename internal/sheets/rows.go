package sheets

import (
	"fmt"
	"strings"

	"sheetledger/internal/core"
)

// EntryRow lays out an entry in column order. Amount is in units.
func EntryRow(e core.Entry) RawRow {
	return RawRow{e.Date, e.Category, e.Amount.Units(), e.Note}
}

// ParseRow turns the data row at position row into a record. Cells are
// coerced, never rejected: missing cells are empty and a non-numeric amount
// becomes zero.
func ParseRow(raw RawRow, row int) core.ExpenseRecord {
	return core.ExpenseRecord{
		Row: row,
		Entry: core.Entry{
			Date:     CellString(raw, 0),
			Category: CellString(raw, 1),
			Amount:   core.CoerceAmount(cell(raw, 2)),
			Note:     CellString(raw, 3),
		},
	}
}

// CellString renders cell i as trimmed text; out of range cells are empty.
func CellString(raw RawRow, i int) string {
	v := cell(raw, i)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func cell(raw RawRow, i int) any {
	if i < 0 || i >= len(raw) {
		return nil
	}
	return raw[i]
}

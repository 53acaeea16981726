package core

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func rec(row int, date, cat string, cents int64) ExpenseRecord {
	return ExpenseRecord{Row: row, Entry: Entry{Date: date, Category: cat, Amount: Money{Cents: cents}}}
}

func TestMonthsPresent(t *testing.T) {
	records := []ExpenseRecord{
		rec(2, "2024-01-05", "A", 1),
		rec(3, "2024-03-02", "A", 1),
		rec(4, "2024-01-09", "B", 1),
	}
	got := MonthsPresent(records)
	want := []string{"2024-01", "2024-03"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MonthsPresent = %v, want %v", got, want)
	}
	if got := MonthsPresent(nil); len(got) != 0 {
		t.Fatalf("expected no months, got %v", got)
	}
}

func TestFilterByMonth(t *testing.T) {
	records := []ExpenseRecord{
		rec(2, "2024-02-01", "A", 100),
		rec(3, "2024-01-15", "B", 250),
		rec(4, "2024-02-20", "A", 50),
		rec(5, "2023-02-20", "C", 75),
	}

	all := FilterByMonth(records, "")
	if !reflect.DeepEqual(all, records) {
		t.Fatalf("empty month should return all records in order")
	}

	for _, month := range []string{"2024-02", "2024-01", "2023-02", "2022-12"} {
		got := FilterByMonth(records, month)
		var wantSum int64
		var want []ExpenseRecord
		for _, r := range records {
			if strings.HasPrefix(r.Date, month) {
				want = append(want, r)
				wantSum += r.Amount.Cents
			}
		}
		if len(got) != len(want) {
			t.Fatalf("%s: got %d records, want %d", month, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("%s: record %d = %+v, want %+v", month, i, got[i], want[i])
			}
		}
		if total := TotalOf(got); total.Cents != wantSum {
			t.Fatalf("%s: total %d, want %d", month, total.Cents, wantSum)
		}
	}
}

func TestTotalsByCategory(t *testing.T) {
	records := []ExpenseRecord{
		rec(2, "2024-01-01", "A", 1000),
		rec(3, "2024-01-02", "B", 500),
		rec(4, "2024-01-03", "A", 300),
	}
	got := TotalsByCategory(records)
	want := []CategoryAmount{
		{Name: "A", Amount: Money{Cents: 1300}},
		{Name: "B", Amount: Money{Cents: 500}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TotalsByCategory = %+v, want %+v", got, want)
	}
}

func TestTotalOfEmpty(t *testing.T) {
	if got := TotalOf(nil); got.Cents != 0 {
		t.Fatalf("empty total = %d", got.Cents)
	}
}

func TestTotalsSaturateInsteadOfWrapping(t *testing.T) {
	big := int64(1) << 62
	records := []ExpenseRecord{
		rec(2, "2024-01-01", "A", big),
		rec(3, "2024-01-02", "A", big),
	}
	if got := TotalOf(records).Cents; got != math.MaxInt64 {
		t.Fatalf("TotalOf = %d, want %d", got, int64(math.MaxInt64))
	}
	cats := TotalsByCategory(records)
	if len(cats) != 1 || cats[0].Amount.Cents != math.MaxInt64 {
		t.Fatalf("TotalsByCategory = %+v", cats)
	}

	negative := []ExpenseRecord{
		rec(2, "2024-01-01", "A", -big),
		rec(3, "2024-01-02", "A", -big),
		rec(4, "2024-01-03", "A", -big),
	}
	if got := TotalOf(negative).Cents; got != math.MinInt64 {
		t.Fatalf("negative TotalOf = %d, want %d", got, int64(math.MinInt64))
	}
}

func TestAddCents(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{1, 2, 3},
		{-5, 3, -2},
		{math.MaxInt64, 1, math.MaxInt64},
		{math.MinInt64, -1, math.MinInt64},
		{math.MaxInt64, math.MinInt64, -1},
	}
	for _, tt := range tests {
		if got := AddCents(tt.a, tt.b); got != tt.want {
			t.Errorf("AddCents(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

package core

import (
	"errors"
	"testing"
)

func TestEntryValidate(t *testing.T) {
	good := Entry{Date: "2024-01-05", Category: "Food", Amount: Money{Cents: 100}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e    Entry
		want error
	}{
		{Entry{Date: "", Amount: Money{Cents: 1}}, ErrInvalidDate},
		{Entry{Date: "2024-13-01", Amount: Money{Cents: 1}}, ErrInvalidDate},
		{Entry{Date: "05/01/2024", Amount: Money{Cents: 1}}, ErrInvalidDate},
		{Entry{Date: "2024-01-05", Amount: Money{Cents: 0}}, ErrInvalidAmount},
		{Entry{Date: "2024-01-05", Amount: Money{Cents: -5}}, ErrInvalidAmount},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestValidateRow(t *testing.T) {
	if err := ValidateRow(2); err != nil {
		t.Fatalf("row 2 should be valid: %v", err)
	}
	for _, row := range []int{-1, 0, 1} {
		if err := ValidateRow(row); !errors.Is(err, ErrInvalidRow) {
			t.Fatalf("row %d expected ErrInvalidRow, got %v", row, err)
		}
	}
}

func TestRecordDateHelpers(t *testing.T) {
	r := ExpenseRecord{Row: 2, Entry: Entry{Date: "2024-03-02"}}
	if r.Month() != "2024-03" {
		t.Fatalf("month = %q", r.Month())
	}
	if r.DisplayDate() != "2024/03/02" {
		t.Fatalf("display date = %q", r.DisplayDate())
	}
	short := ExpenseRecord{Entry: Entry{Date: "2024"}}
	if short.Month() != "2024" {
		t.Fatalf("short month = %q", short.Month())
	}
}

func TestValidateMonth(t *testing.T) {
	for _, ok := range []string{"", "2024-01", "1999-12"} {
		if err := ValidateMonth(ok); err != nil {
			t.Errorf("ValidateMonth(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"2024", "2024-13", "2024-1", "2024-01-05", "all"} {
		if err := ValidateMonth(bad); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("ValidateMonth(%q) = %v, want ErrInvalidMonth", bad, err)
		}
	}
}

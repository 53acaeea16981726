package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the text form dates are stored in.
const DateLayout = "2006-01-02"

// MonthLayout is the month filter format.
const MonthLayout = "2006-01"

// FirstDataRow is the positional row of the first record; row 1 holds headers.
const FirstDataRow = 2

type (
	Money struct {
		Cents int64
	}

	// Entry holds the user-editable fields of an expense.
	Entry struct {
		Date     string // YYYY-MM-DD
		Category string
		Amount   Money
		Note     string
	}

	// ExpenseRecord is an Entry as read back from the store, addressed by
	// its positional row.
	ExpenseRecord struct {
		Row int
		Entry
	}

	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		Name   string
		Amount Money
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidBudget = errors.New("invalid budget")
	ErrInvalidRow    = errors.New("invalid row")
	ErrInvalidMonth  = errors.New("invalid month")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDate checks that s is a calendar date in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(s)); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// ValidateMonth accepts "" (all months) or a YYYY-MM month.
func ValidateMonth(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return ErrInvalidMonth
	}
	return nil
}

// ValidateRow checks that row can address a data row.
func ValidateRow(row int) error {
	if row < FirstDataRow {
		return ErrInvalidRow
	}
	return nil
}

// Validate applies the entry form checks: a real date and a positive amount.
// Category and note are free text.
func (e Entry) Validate() error {
	if err := ValidateDate(e.Date); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// Month returns the YYYY-MM prefix of the record date.
func (r ExpenseRecord) Month() string {
	return monthOf(r.Date)
}

// DisplayDate renders the stored date as YYYY/MM/DD.
func (r ExpenseRecord) DisplayDate() string {
	return strings.ReplaceAll(r.Date, "-", "/")
}

func monthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

package http

import (
	"errors"
	"strings"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/services"
	"sheetledger/internal/sheets"
)

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// today formats t as the default value of the entry form's date field.
func today(t time.Time) string {
	return t.Format(core.DateLayout)
}

// validationMessage maps an input error to the text shown to the user.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number greater than zero"
	case errors.Is(err, core.ErrInvalidDate):
		return "Date must be a valid YYYY-MM-DD date"
	case errors.Is(err, core.ErrInvalidBudget):
		return "Budget must be a number greater than zero"
	case errors.Is(err, core.ErrInvalidRow):
		return "Invalid record row"
	case errors.Is(err, core.ErrInvalidMonth):
		return "Month must be YYYY-MM"
	}
	return "Invalid input"
}

// mutationError turns a RecordService error into a response. failMsg is
// shown when the store did not acknowledge the change.
func mutationError(err error, failMsg string) *HTMXResponseBuilder {
	switch {
	case services.IsValidationError(err):
		return UnprocessableEntityError(validationMessage(err))
	case errors.Is(err, sheets.ErrRowNotFound):
		return NotFoundError("Record not found").TriggerRecordsChanged("reload")
	default:
		// the cache was reloaded anyway; let the page show the store's state
		return BadGatewayError(failMsg).TriggerRecordsChanged("reload")
	}
}

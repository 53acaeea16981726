package core

import (
	"errors"
	"fmt"
	"math"
)

// Budget is the user-set spending limit. The zero value means no budget.
type Budget struct {
	Amount Money
}

// Progress describes spending against a budget.
type Progress struct {
	Set         bool
	Budget      Money
	Spent       Money
	Percent     float64 // 0..100
	PercentText string  // one decimal, e.g. "50.0%"
}

// ParseBudget accepts only finite values greater than zero.
func ParseBudget(s string) (Budget, error) {
	m, err := ParseAmount(s)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return Budget{}, ErrInvalidBudget
		}
		return Budget{}, err
	}
	return Budget{Amount: m}, nil
}

// IsSet reports whether a positive budget has been set.
func (b Budget) IsSet() bool {
	return b.Amount.Cents > 0
}

// Progress computes min(spent/budget*100, 100). Without a budget the result
// is the "no budget" state with zero progress regardless of spent.
func (b Budget) Progress(spent Money) Progress {
	if !b.IsSet() {
		return Progress{Spent: spent, PercentText: "0.0%"}
	}
	pct := float64(spent.Cents) / float64(b.Amount.Cents) * 100
	pct = math.Max(0, math.Min(pct, 100))
	return Progress{
		Set:         true,
		Budget:      b.Amount,
		Spent:       spent,
		Percent:     pct,
		PercentText: fmt.Sprintf("%.1f%%", pct),
	}
}

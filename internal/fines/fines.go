// Package fines derives overdue penalties from loan dates.
package fines

import (
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

const day = 24 * time.Hour

// DaysOverdue returns the number of whole days settlement lies past due,
// never negative.
func DaysOverdue(due, settlement time.Time) int {
	if !settlement.After(due) {
		return 0
	}
	return int(settlement.Sub(due) / day)
}

// Amount is days × rate.
func Amount(days int, rate model.Money) model.Money {
	if days <= 0 || rate <= 0 {
		return 0
	}
	return model.Money(int64(days) * int64(rate))
}

// Assess computes the fine for a loan settled at the given time.
func Assess(due, settlement time.Time, rate model.Money) model.Money {
	return Amount(DaysOverdue(due, settlement), rate)
}

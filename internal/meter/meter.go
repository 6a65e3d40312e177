// Package meter computes the cost of a billable chat exchange from its
// character counts. It is pure: no state, no failure modes.
package meter

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// charsPerUnit is the metering unit: the rate is expressed per this
// many characters of combined input and output.
const charsPerUnit = 10000

// DefaultRate charges 1.00 per 10000 characters.
var DefaultRate = decimal.NewFromInt(1)

// ComputeCost returns the cost of an exchange at the default rate,
// rounded half-up to two decimal places. Inputs are assumed
// non-negative; the caller normalizes malformed values before calling.
func ComputeCost(inputChars, outputChars int) decimal.Decimal {
	return ComputeCostAtRate(inputChars, outputChars, DefaultRate)
}

// ComputeCostAtRate computes cost = total * rate / 10000, rounded
// half-up to two decimal places. The arithmetic is exact: the division
// by 10000 is a decimal exponent shift, so no precision is lost before
// rounding.
func ComputeCostAtRate(inputChars, outputChars int, ratePerUnit decimal.Decimal) decimal.Decimal {
	total := int64(inputChars) + int64(outputChars)
	return decimal.NewFromInt(total).Mul(ratePerUnit).Shift(-4).Round(2)
}

// EstimateCost predicts the cost of sending a message before the reply
// is known, assuming the reply will be about as long as the input.
func EstimateCost(message string, ratePerUnit decimal.Decimal) decimal.Decimal {
	chars := utf8.RuneCountInString(message)
	return ComputeCostAtRate(chars, chars, ratePerUnit)
}

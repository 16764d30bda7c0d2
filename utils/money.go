package utils

import (
	"github.com/shopspring/decimal"
)

// MoneyTolerance is the largest difference accepted between two amounts that
// should be equal after rounding to cents.
var MoneyTolerance = decimal.New(1, -2)

// RoundMoney rounds an amount to cents.
func RoundMoney(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

// LineTotal returns unitPrice × quantity rounded to cents.
func LineTotal(unitPrice float64, quantity int) float64 {
	f, _ := decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2).Float64()
	return f
}

// SumMoney adds amounts without float drift.
func SumMoney(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// AmountsMatch reports whether a and b, rounded to cents, agree within
// MoneyTolerance.
func AmountsMatch(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Round(2).Sub(decimal.NewFromFloat(b).Round(2)).Abs()
	return diff.LessThanOrEqual(MoneyTolerance)
}

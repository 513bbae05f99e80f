// Package money represents monetary amounts as integer minor units
// (cents for USD). All arithmetic and all wire transmission happen in
// minor units; decimal strings exist only at the presentation edge.
package money

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAmount is returned for amounts that cannot be charged.
var ErrInvalidAmount = errors.New("money: amount must be positive")

// Amount is a sum of money in the smallest unit of its currency.
type Amount struct {
	// Minor is the value in minor units, e.g. 4700 for $47.00.
	Minor int64
	// Currency is the lower-case ISO 4217 code, e.g. "usd".
	Currency string
}

// New builds an Amount, normalising the currency code to lower case.
// Currency defaults to "usd" when empty, matching the checkout default.
func New(minor int64, currency string) Amount {
	if currency == "" {
		currency = "usd"
	}
	return Amount{Minor: minor, Currency: strings.ToLower(currency)}
}

// Validate rejects non-positive amounts before any gateway call is made.
func (a Amount) Validate() error {
	if a.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal renders the amount as a plain decimal string ("47.00").
// Assumes a two-decimal currency, which covers every currency the shop sells in.
func (a Amount) Decimal() string {
	neg := ""
	m := a.Minor
	if m < 0 {
		neg = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", neg, m/100, m%100)
}

// String implements fmt.Stringer for logging ("47.00 usd").
func (a Amount) String() string {
	return a.Decimal() + " " + a.Currency
}

package money

import "math"

// Cents is an amount in the currency's minor unit (USD cents).
type Cents int64

// FromFloat converts a major-unit price (e.g. 10.00) to minor units,
// rounding half away from zero to match the amounts submitted to the
// payment processor.
func FromFloat(price float64) Cents {
	return Cents(math.Round(price * 100))
}

func (c Cents) Float() float64 {
	return float64(c) / 100
}

func (c Cents) Int64() int64 {
	return int64(c)
}

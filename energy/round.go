package energy

import "math"

// Round rounds v to digits decimal places, half away from zero.
func Round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	r := math.Round(v*p) / p

	// Avoid publishing -0.
	if r == 0 {
		return 0
	}

	return r
}

package design

import "math"

// AnnualPeriod is the seasonal cycle length in days. Using 365.25 on the
// raw day index keeps the encoding continuous across leap days.
const AnnualPeriod = 365.25

// FourierTerms evaluates sin/cos harmonic pairs of the annual cycle at a
// day index. Returns 2*harmonics values ordered sin_1, cos_1, sin_2, ...
func FourierTerms(dayIndex int, harmonics int) []float64 {
	terms := make([]float64, 0, 2*harmonics)
	for k := 1; k <= harmonics; k++ {
		angle := 2 * math.Pi * float64(k) * float64(dayIndex) / AnnualPeriod
		terms = append(terms, math.Sin(angle), math.Cos(angle))
	}
	return terms
}

package model

import (
	"math"
)

// etaCap bounds the linear predictor. exp(30) days of shootings is already
// beyond any plausible city; the cap keeps rejected proposals from
// overflowing the likelihood instead of merely scoring badly.
const etaCap = 30

// negBinLogPMF is the log probability of count y under a negative binomial
// with mean mu and size (dispersion) r:
//
//	lgamma(y+r) - lgamma(r) - lgamma(y+1)
//	  + r*log(r/(r+mu)) + y*log(mu/(r+mu))
func negBinLogPMF(y int, mu, r float64) float64 {
	fy := float64(y)
	lgYR, _ := math.Lgamma(fy + r)
	lgR, _ := math.Lgamma(r)
	lgY1, _ := math.Lgamma(fy + 1)
	return lgYR - lgR - lgY1 +
		r*math.Log(r/(r+mu)) +
		fy*math.Log(mu/(r+mu))
}

// poissonLogPMF is the log probability of count y under a Poisson with
// mean mu.
func poissonLogPMF(y int, mu float64) float64 {
	fy := float64(y)
	lgY1, _ := math.Lgamma(fy + 1)
	return fy*math.Log(mu) - mu - lgY1
}

// linearPredictor computes eta = x . beta, capped to [-etaCap, etaCap].
func linearPredictor(x, beta []float64) float64 {
	eta := 0.0
	for j, v := range x {
		eta += v * beta[j]
	}
	if eta > etaCap {
		return etaCap
	}
	if eta < -etaCap {
		return -etaCap
	}
	return eta
}

// mu = exp(eta) with zero counts handled by the log link: mu is always
// strictly positive.
func meanFromEta(eta float64) float64 {
	return math.Exp(eta)
}

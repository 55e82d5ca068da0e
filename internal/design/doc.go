// Package design constructs the covariate (design) matrix for the daily
// count regression.
//
// Each row is one study day; columns are assembled in a fixed order so
// coefficient names are stable across runs:
//
//	intercept
//	trend_1 .. trend_df        natural cubic spline over the day index
//	seasonal_sin_k/cos_k       annual Fourier harmonics, period 365.25 days
//	weekday_tue .. weekday_sun day-of-week indicators (Monday reference)
//	holiday                    observed public holiday indicator
//	ceasefire[_label]          intervention window indicator(s)
//
// The seasonal period is 365.25 days on the raw day index rather than
// day-of-year, so the encoding stays smooth across leap days instead of
// jumping at each February 29.
package design

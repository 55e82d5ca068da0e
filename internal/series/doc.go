// Package series holds the daily shooting-count series and its ingestion.
//
// The unit of analysis is one calendar day in the study city. Raw input is
// either incident-level (one row per shooting) or pre-aggregated (one row
// per day with a count column); both collapse to a dense Series: a start
// date plus one count per day, with days that saw no recorded shootings
// stored as explicit zeros. Downstream covariate construction and model
// fitting index days by position in this dense vector, so the zero-fill
// invariant is load-bearing: Series.Counts[i] is always the count for
// Start + i days, with no gaps.
//
// All dates are calendar dates (year, month, day) with no time-of-day or
// timezone component. time.Time values are normalized to UTC midnight at
// the package boundary.
package series

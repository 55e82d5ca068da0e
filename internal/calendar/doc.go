// Package calendar detects US public holidays and related calendar
// structure for covariate construction.
//
// Three classes of holiday are handled:
//   - Fixed-date holidays (e.g. Independence Day), with federal observed-day
//     shifting: a Saturday holiday is observed the preceding Friday, a
//     Sunday holiday the following Monday.
//   - Floating nth-weekday holidays (e.g. Thanksgiving: fourth Thursday of
//     November; Memorial Day: last Monday of May).
//   - Easter-anchored holidays, located by the Gregorian computus.
//
// Holiday effects on shooting counts are modeled with a single indicator
// covariate, so the package answers "is this date a holiday" rather than
// "which holiday is it" on the hot path; the name is still returned for
// reporting.
package calendar

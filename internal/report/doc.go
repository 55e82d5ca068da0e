// Package report assembles posterior summaries into the presentation
// surfaces of the analysis: an effects table, a coefficient/IRR table,
// marginal trend and seasonal curves, and per-day posterior predictive
// intervals.
//
// A Report is a plain data structure; rendering is either JSON (through
// the CLI output formatter) or aligned text tables. Text output is stable
// for a given run and seed and is pinned by golden files in the tests.
package report

// Package store provides SQLite-backed durable storage for the analysis
// pipeline's artifacts.
//
// Three artifact families are stored:
//   - Observations: the dense daily shooting-count series
//   - Runs: one record per model fit (config hash, data fingerprint,
//     sampler settings, convergence diagnostics)
//   - Draws: the kept MCMC draws of each run, one row per chain iteration
//
// Every run records the fingerprint of the observations it was fit
// against, so a later report can refuse to summarize draws whose
// underlying data has since changed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints are computed in internal/canonical using RFC 8785-style
// canonical JSON and SHA-256 with domain separation.
package store

// Package config defines the analysis configuration and compiles it from
// CUE source.
//
// An analysis config names the model structure (likelihood, trend spline
// degrees of freedom, seasonal harmonics, calendar toggles), the priors,
// the ceasefire intervention windows, the sampler settings, and an optional
// study span clip. Configs live as .cue files in a directory; the CLI
// loader builds a single CUE value from the directory and this package
// compiles the "analysis" struct out of it.
//
// Compilation (CUE → typed Analysis, with source positions on errors) and
// validation (semantic rules over the typed value, collect-all) are
// separate passes: a config that compiles may still fail validation.
package config

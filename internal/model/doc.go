// Package model fits the Bayesian count regression.
//
// The observation model is a negative-binomial (or Poisson) GLM with log
// link over the design matrix: log mu_t = x_t . beta, with independent
// normal priors on the coefficients and a normal prior on log dispersion.
// The negative binomial is parameterized by mean mu and size r, so the
// variance is mu + mu^2/r and Poisson is the r -> inf limit.
//
// Sampling is delegated to gonum's off-the-shelf random-walk
// Metropolis-Hastings (stat/samplemv.MetropolisHastingser with a normal
// proposal); this package only supplies the log-posterior and the chain
// orchestration. Chains run in parallel, each with a seed derived
// deterministically from the run seed, so a fit is reproducible given the
// same config, data, and seed.
//
// Convergence is assessed with split-R-hat and a Geyer-style effective
// sample size; both are advisory (reported, warned on, never fatal).
package model

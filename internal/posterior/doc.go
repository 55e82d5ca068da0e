// Package posterior post-processes MCMC draws into the quantities a report
// presents: coefficient summaries, incidence rate ratios, marginal trend
// curves, posterior predictive intervals, and ceasefire effect summaries.
//
// Everything here is a pure function of the draws plus the design matrix
// and series that produced them; nothing touches the sampler. Credible
// intervals are equal-tailed throughout.
package posterior

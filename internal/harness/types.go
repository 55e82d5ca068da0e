package harness

import (
	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/posterior"
	"github.com/roach88/ceasefire/internal/report"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass indicates overall success: the fit completed and every
	// assertion held.
	Pass bool `json:"pass"`

	// Errors contains the failed assertion messages. Empty if Pass.
	Errors []string `json:"errors,omitempty"`

	// Effects holds the fitted window effects, for inspection beyond the
	// scenario's own assertions.
	Effects []posterior.Effect `json:"effects,omitempty"`

	// Diagnostics are the convergence diagnostics of the fit.
	Diagnostics model.Diagnostics `json:"diagnostics"`

	// MoveRate is the mean move rate across chains.
	MoveRate float64 `json:"move_rate"`

	// Report is the full assembled report, used for golden comparison.
	Report *report.Report `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/posterior"
)

// AssertionError describes one failed assertion with enough context to
// diagnose it without re-running the scenario.
type AssertionError struct {
	Type     string // assertion type for categorization
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the fit and records
// failures on the result. All assertions run; one failure does not mask
// the next.
func EvaluateAssertions(result *Result, assertions []Assertion, draws *posterior.Draws, fit *model.Result) {
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertIRRWithin:
			err = assertIRRWithin(draws, a)
		case AssertProbReduction:
			err = assertProbReduction(draws, a)
		case AssertRHatBelow:
			err = assertRHatBelow(fit, a)
		case AssertESSAbove:
			err = assertESSAbove(fit, a)
		case AssertParamSign:
			err = assertParamSign(draws, a)
		case AssertMoveRateWithin:
			err = assertMoveRateWithin(result.MoveRate, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			result.AddError(err.Error())
		}
	}
}

// assertIRRWithin checks the posterior mean incidence rate ratio of a
// parameter against [Min, Max].
func assertIRRWithin(draws *posterior.Draws, a Assertion) error {
	irr, err := draws.RateRatio(a.Param, posterior.DefaultLevel)
	if err != nil {
		return &AssertionError{
			Type:     AssertIRRWithin,
			Expected: fmt.Sprintf("parameter %q present", a.Param),
			Actual:   err.Error(),
		}
	}
	if irr.Mean < a.Min || irr.Mean > a.Max {
		return &AssertionError{
			Type:     AssertIRRWithin,
			Expected: fmt.Sprintf("mean IRR of %q in [%g, %g]", a.Param, a.Min, a.Max),
			Actual:   fmt.Sprintf("mean IRR %.4f (interval %.4f..%.4f)", irr.Mean, irr.Lower, irr.Upper),
		}
	}
	return nil
}

// assertProbReduction checks Pr(IRR < 1) meets the threshold.
func assertProbReduction(draws *posterior.Draws, a Assertion) error {
	prob, err := draws.ProbBelow(a.Param, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertProbReduction,
			Expected: fmt.Sprintf("parameter %q present", a.Param),
			Actual:   err.Error(),
		}
	}
	if prob < a.Value {
		return &AssertionError{
			Type:     AssertProbReduction,
			Expected: fmt.Sprintf("Pr(IRR of %q < 1) >= %g", a.Param, a.Value),
			Actual:   fmt.Sprintf("%.4f", prob),
		}
	}
	return nil
}

func assertRHatBelow(fit *model.Result, a Assertion) error {
	if max := fit.Diagnostics.MaxRHat(); max >= a.Value {
		return &AssertionError{
			Type:     AssertRHatBelow,
			Expected: fmt.Sprintf("max split-R-hat < %g", a.Value),
			Actual:   fmt.Sprintf("%.4f", max),
		}
	}
	return nil
}

func assertESSAbove(fit *model.Result, a Assertion) error {
	if min := fit.Diagnostics.MinESS(); min <= a.Value {
		return &AssertionError{
			Type:     AssertESSAbove,
			Expected: fmt.Sprintf("min effective sample size > %g", a.Value),
			Actual:   fmt.Sprintf("%.1f", min),
		}
	}
	return nil
}

// assertParamSign checks the sign of a coefficient's posterior mean on
// the log scale.
func assertParamSign(draws *posterior.Draws, a Assertion) error {
	summary, err := draws.SummarizeParam(a.Param, posterior.DefaultLevel)
	if err != nil {
		return &AssertionError{
			Type:     AssertParamSign,
			Expected: fmt.Sprintf("parameter %q present", a.Param),
			Actual:   err.Error(),
		}
	}
	wantPositive := a.Sign == "positive"
	if (summary.Mean > 0) != wantPositive {
		return &AssertionError{
			Type:     AssertParamSign,
			Expected: fmt.Sprintf("posterior mean of %q %s", a.Param, a.Sign),
			Actual:   fmt.Sprintf("%.4f", summary.Mean),
		}
	}
	return nil
}

func assertMoveRateWithin(rate float64, a Assertion) error {
	if rate < a.Min || rate > a.Max {
		return &AssertionError{
			Type:     AssertMoveRateWithin,
			Expected: fmt.Sprintf("mean move rate in [%g, %g]", a.Min, a.Max),
			Actual:   fmt.Sprintf("%.3f", rate),
		}
	}
	return nil
}

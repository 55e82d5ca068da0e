package harness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/posterior"
)

// fixedDraws builds single-chain draws where the "ceasefire" coefficient
// is constant at log(irr).
func fixedDraws(t *testing.T, irr float64) *posterior.Draws {
	t.Helper()
	chain := mat.NewDense(40, 2, nil)
	for i := 0; i < 40; i++ {
		chain.Set(i, 0, math.Log(5))
		chain.Set(i, 1, math.Log(irr))
	}
	d, err := posterior.New([]string{"intercept", "ceasefire"}, []*mat.Dense{chain})
	require.NoError(t, err)
	return d
}

func fixedFit(rhat, ess float64) *model.Result {
	return &model.Result{
		ParamNames: []string{"intercept", "ceasefire"},
		Diagnostics: model.Diagnostics{
			RHat: []float64{1.0, rhat},
			ESS:  []float64{900, ess},
		},
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.MoveRate = 0.3
	draws := fixedDraws(t, 0.5)
	fit := fixedFit(1.01, 800)

	EvaluateAssertions(result, []Assertion{
		{Type: AssertIRRWithin, Param: "ceasefire", Min: 0.4, Max: 0.6},
		{Type: AssertProbReduction, Param: "ceasefire", Value: 0.9},
		{Type: AssertRHatBelow, Value: 1.05},
		{Type: AssertESSAbove, Value: 500},
		{Type: AssertParamSign, Param: "ceasefire", Sign: "negative"},
		{Type: AssertMoveRateWithin, Min: 0.1, Max: 0.5},
	}, draws, fit)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	result := NewResult()
	result.MoveRate = 0.02
	draws := fixedDraws(t, 1.4) // window made things worse
	fit := fixedFit(1.2, 50)

	EvaluateAssertions(result, []Assertion{
		{Type: AssertIRRWithin, Param: "ceasefire", Min: 0.4, Max: 0.6},
		{Type: AssertProbReduction, Param: "ceasefire", Value: 0.9},
		{Type: AssertRHatBelow, Value: 1.05},
		{Type: AssertESSAbove, Value: 500},
		{Type: AssertParamSign, Param: "ceasefire", Sign: "negative"},
		{Type: AssertMoveRateWithin, Min: 0.1, Max: 0.5},
	}, draws, fit)

	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 6, "every failed assertion is reported")
}

func TestAssertIRRWithin_UnknownParam(t *testing.T) {
	err := assertIRRWithin(fixedDraws(t, 0.5), Assertion{
		Type: AssertIRRWithin, Param: "missing", Min: 0.4, Max: 0.6,
	})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertIRRWithin, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "missing")
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertRHatBelow,
		Expected: "max split-R-hat < 1.05",
		Actual:   "1.2000",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: rhat_below")
	assert.Contains(t, msg, "Expected: max split-R-hat < 1.05")
	assert.Contains(t, msg, "Actual: 1.2000")
}

func TestAssertParamSign(t *testing.T) {
	draws := fixedDraws(t, 2.0) // positive coefficient

	assert.NoError(t, assertParamSign(draws, Assertion{
		Type: AssertParamSign, Param: "ceasefire", Sign: "positive",
	}))
	assert.Error(t, assertParamSign(draws, Assertion{
		Type: AssertParamSign, Param: "ceasefire", Sign: "negative",
	}))
}

func TestAssertMoveRateWithin(t *testing.T) {
	assert.NoError(t, assertMoveRateWithin(0.3, Assertion{Min: 0.1, Max: 0.5}))
	assert.Error(t, assertMoveRateWithin(0.0, Assertion{Min: 0.1, Max: 0.5}),
		"a frozen chain fails the band")
	assert.Error(t, assertMoveRateWithin(0.9, Assertion{Min: 0.1, Max: 0.5}))
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	result := NewResult()
	EvaluateAssertions(result, []Assertion{{Type: "bogus"}}, fixedDraws(t, 0.5), fixedFit(1.0, 900))

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bogus")
}

package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ceasefire/internal/report"
)

// RunWithGolden executes a scenario and compares its rendered report
// against a golden file under testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden comparison only makes sense because scenarios are deterministic:
// the generator, the sampler, the run id, and the run timestamp are all
// fixed by the scenario, so the report is byte-identical across runs.
//
// Returns an error if scenario execution fails; a report mismatch fails
// the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.RenderText(&buf, result.Report); err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, buf.Bytes())

	return result, nil
}

package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/roach88/ceasefire/internal/config"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func flatSpec() SeriesSpec {
	return SeriesSpec{
		Start:    day(2023, 1, 2), // a Monday
		Days:     60,
		Baseline: 8,
		Seed:     1,
	}
}

func TestGenerateSeries_Deterministic(t *testing.T) {
	spec := flatSpec()

	first, err := GenerateSeries(spec)
	if err != nil {
		t.Fatalf("GenerateSeries failed: %v", err)
	}
	second, err := GenerateSeries(spec)
	if err != nil {
		t.Fatalf("GenerateSeries failed: %v", err)
	}

	if first.Len() != spec.Days {
		t.Fatalf("series has %d days, want %d", first.Len(), spec.Days)
	}
	for i := range first.Counts {
		if first.Counts[i] != second.Counts[i] {
			t.Fatalf("day %d differs between identical specs: %d vs %d", i, first.Counts[i], second.Counts[i])
		}
	}

	spec.Seed = 2
	third, err := GenerateSeries(spec)
	if err != nil {
		t.Fatalf("GenerateSeries failed: %v", err)
	}
	same := true
	for i := range first.Counts {
		if first.Counts[i] != third.Counts[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical counts")
	}
}

func TestGenerateSeries_Validation(t *testing.T) {
	spec := flatSpec()
	spec.Days = 0
	if _, err := GenerateSeries(spec); err == nil {
		t.Error("zero days should fail")
	}

	spec = flatSpec()
	spec.Baseline = 0
	if _, err := GenerateSeries(spec); err == nil {
		t.Error("zero baseline should fail")
	}
}

func TestGenerateSeries_MeanNearBaseline(t *testing.T) {
	spec := flatSpec()
	spec.Days = 2000
	spec.Baseline = 10

	s, err := GenerateSeries(spec)
	if err != nil {
		t.Fatalf("GenerateSeries failed: %v", err)
	}
	if mean := s.Mean(); math.Abs(mean-10) > 0.5 {
		t.Errorf("flat series mean %.2f, want near 10", mean)
	}
}

func TestTrueRate_Components(t *testing.T) {
	spec := flatSpec()
	spec.Weekday = map[time.Weekday]float64{time.Saturday: 1.5}
	spec.Windows = []WindowEffect{
		{
			Window: config.Window{Label: "w", Start: day(2023, 1, 20), End: day(2023, 1, 22)},
			Effect: 0.5,
		},
	}

	// A plain Monday at mid-span keeps the baseline.
	if rate := TrueRate(spec, day(2023, 1, 30)); math.Abs(rate-8) > 1e-9 {
		t.Errorf("reference day rate %.4f, want 8", rate)
	}

	// Saturday outside any window: baseline times the weekday multiplier.
	if rate := TrueRate(spec, day(2023, 1, 14)); math.Abs(rate-12) > 1e-9 {
		t.Errorf("saturday rate %.4f, want 12", rate)
	}

	// A window Saturday stacks both effects: 8 * 1.5 * 0.5.
	if rate := TrueRate(spec, day(2023, 1, 21)); math.Abs(rate-6) > 1e-9 {
		t.Errorf("window saturday rate %.4f, want 6", rate)
	}
}

func TestTrueRate_Holiday(t *testing.T) {
	spec := flatSpec()
	spec.HolidayEffect = 2

	// MLK Day 2023.
	if rate := TrueRate(spec, day(2023, 1, 16)); math.Abs(rate-16) > 1e-9 {
		t.Errorf("holiday rate %.4f, want 16", rate)
	}
	if rate := TrueRate(spec, day(2023, 1, 17)); math.Abs(rate-8) > 1e-9 {
		t.Errorf("ordinary day rate %.4f, want 8", rate)
	}
}

func TestTrueRate_TrendCentered(t *testing.T) {
	spec := flatSpec()
	spec.Days = 101
	spec.TrendTotal = 1.0

	mid := TrueRate(spec, day(2023, 1, 2).AddDate(0, 0, 50))
	if math.Abs(mid-8) > 1e-9 {
		t.Errorf("mid-span rate %.4f, want the baseline 8", mid)
	}

	first := TrueRate(spec, day(2023, 1, 2))
	last := TrueRate(spec, day(2023, 1, 2).AddDate(0, 0, 100))
	if ratio := last / first; math.Abs(ratio-math.E) > 1e-9 {
		t.Errorf("first-to-last ratio %.4f, want e for a unit log drift", ratio)
	}
}

func TestGenerateSeries_WindowReducesCounts(t *testing.T) {
	spec := flatSpec()
	spec.Days = 365
	spec.Baseline = 50
	spec.Windows = []WindowEffect{
		{
			Window: config.Window{Label: "w", Start: day(2023, 3, 1), End: day(2023, 3, 31)},
			Effect: 0.2,
		},
	}

	s, err := GenerateSeries(spec)
	if err != nil {
		t.Fatalf("GenerateSeries failed: %v", err)
	}

	window := config.Window{Start: day(2023, 3, 1), End: day(2023, 3, 31)}
	var in, out, inDays, outDays float64
	for i := 0; i < s.Len(); i++ {
		if window.Contains(s.Date(i)) {
			in += float64(s.Counts[i])
			inDays++
		} else {
			out += float64(s.Counts[i])
			outDays++
		}
	}

	if inMean, outMean := in/inDays, out/outDays; inMean > 0.5*outMean {
		t.Errorf("window mean %.2f not clearly below baseline mean %.2f", inMean, outMean)
	}
}

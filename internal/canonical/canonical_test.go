package canonical

import (
	"math"
	"strings"
	"testing"
)

func TestMarshal_Primitives(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"float integer-valued", 4.0, "4"},
		{"float fractional", 0.95, "0.95"},
		{"float shortest round trip", 0.1, "0.1"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"empty array", []any{}, "[]"},
		{"int slice", []int{1, 2, 3}, "[1,2,3]"},
		{"float slice", []float64{1.5, 2}, "[1.5,2]"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			if err != nil {
				t.Fatalf("Marshal(%v) failed: %v", tt.input, err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarshal_RejectsNonFinite(t *testing.T) {
	for _, v := range []any{nil, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Marshal(v); err == nil {
			t.Errorf("Marshal(%v) should fail", v)
		}
	}
}

func TestMarshal_ObjectKeysSorted(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	}
	got, err := Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"alpha":2,"mid":3,"zebra":1}`
	if string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	got, err := Marshal("<a> & </a>")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `"<a> & </a>"` {
		t.Errorf("HTML characters must pass through unescaped, got %s", got)
	}
}

func TestMarshal_ControlCharacters(t *testing.T) {
	got, err := Marshal("line1\nline2\ttab\x01raw")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `"line1\nline2\ttab\u0001raw"`
	if string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// "é" as combining sequence (U+0065 U+0301) vs precomposed (U+00E9)
	// must marshal identically.
	combining, err := Marshal("cafe\u0301")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	precomposed, err := Marshal("café")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(combining) != string(precomposed) {
		t.Errorf("NFC forms differ: %s vs %s", combining, precomposed)
	}
}

func TestMarshal_NestedStructure(t *testing.T) {
	obj := map[string]any{
		"name": "analysis",
		"windows": []any{
			map[string]any{"label": "w1", "days": 3},
		},
		"level": 0.95,
	}
	got, err := Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"level":0.95,"name":"analysis","windows":[{"days":3,"label":"w1"}]}`
	if string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	obj := map[string]any{"x": 1}

	fpConfig, err := Fingerprint(DomainConfig, obj)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	fpSeries, err := Fingerprint(DomainSeries, obj)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if fpConfig == fpSeries {
		t.Error("same value under different domains must fingerprint differently")
	}
	if len(fpConfig) != 64 || strings.ToLower(fpConfig) != fpConfig {
		t.Errorf("fingerprint should be 64 lowercase hex chars, got %q", fpConfig)
	}
}

func TestFingerprint_MapOrderIndependent(t *testing.T) {
	// Two maps with identical content always hash the same, regardless of
	// Go's randomized map iteration.
	a := map[string]any{"one": 1, "two": 2, "three": 3}
	b := map[string]any{"three": 3, "one": 1, "two": 2}

	fpA := MustFingerprint(DomainSeries, a)
	fpB := MustFingerprint(DomainSeries, b)
	if fpA != fpB {
		t.Errorf("fingerprints differ for identical content: %s vs %s", fpA, fpB)
	}
}

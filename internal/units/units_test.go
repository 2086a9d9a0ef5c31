package units

import (
	"math"
	"testing"
)

func TestClampCosine(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.0000001, 1},
		{-1.0000001, -1},
		{0.5, 0.5},
		{-1, -1},
		{1, 1},
	}
	for _, tt := range tests {
		if got := ClampCosine(tt.in); got != tt.want {
			t.Errorf("ClampCosine(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(90.12499); got != 90.12 {
		t.Errorf("Round2 = %v, want 90.12", got)
	}
	if got := Round2(90.125); got != 90.13 {
		t.Errorf("Round2 = %v, want 90.13", got)
	}
}

func TestDegreeRadianRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, 135, 180} {
		if got := ToDegrees(ToRadians(deg)); math.Abs(got-deg) > 1e-9 {
			t.Errorf("round trip %v -> %v", deg, got)
		}
	}
}

func TestScaleThreshold(t *testing.T) {
	if got := ScaleThreshold(200, 0.5); got != 100 {
		t.Errorf("ScaleThreshold = %v, want 100", got)
	}
}

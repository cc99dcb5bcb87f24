package units_test

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/doismellburning/ism433/internal/units"
)

func TestConvertKeyToSI(t *testing.T) {
	cases := []struct {
		key     string
		value   float64
		wantKey string
	}{
		{"temperature_F", 32, "temperature_C"},
		{"wind_speed_mph", 10, "wind_speed_kph"},
		{"rain_inch", 1, "rain_mm"},
		{"pressure_inHg", 30, "pressure_hPa"},
		{"tire_PSI", 32, "tire_kPa"},
	}
	for _, c := range cases {
		gotKey, _ := units.ConvertKey(c.key, c.value, units.SI)
		if gotKey != c.wantKey {
			t.Errorf("ConvertKey(%q, SI) key = %q, want %q", c.key, gotKey, c.wantKey)
		}
	}
}

func TestConvertKeyUnrecognizedSuffixPassesThrough(t *testing.T) {
	key, value := units.ConvertKey("humidity", 55, units.SI)
	if key != "humidity" || value != 55 {
		t.Errorf("expected no conversion, got %q %v", key, value)
	}
}

func TestConvertKeyNoneModeNeverConverts(t *testing.T) {
	key, value := units.ConvertKey("temperature_F", 32, units.None)
	if key != "temperature_F" || value != 32 {
		t.Errorf("expected passthrough in None mode, got %q %v", key, value)
	}
}

// TestRoundTripConversions: converting customary -> SI -> customary
// returns the starting value up to floating point rounding.
func TestRoundTripConversions(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		f := rapid.Float64Range(-100, 200).Draw(tt, "f")
		key, c := units.ConvertKey("x_F", f, units.SI)
		if key != "x_C" {
			tt.Fatalf("unexpected key %q", key)
		}
		_, back := units.ConvertKey("x_C", c, units.Customary)
		if math.Abs(back-f) > 1e-9 {
			tt.Fatalf("round trip drift: %v -> %v -> %v", f, c, back)
		}
	})

	rapid.Check(t, func(tt *rapid.T) {
		mph := rapid.Float64Range(0, 300).Draw(tt, "mph")
		_, kph := units.ConvertKey("x_mph", mph, units.SI)
		_, back := units.ConvertKey("x_kph", kph, units.Customary)
		if math.Abs(back-mph) > 1e-9 {
			tt.Fatalf("round trip drift: %v -> %v -> %v", mph, kph, back)
		}
	})
}

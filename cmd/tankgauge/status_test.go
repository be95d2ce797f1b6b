package main

import (
	"testing"

	"github.com/charlie0129/tankgauge/pkg/sink"
)

func TestFormatMeasurement(t *testing.T) {
	tests := []struct {
		path  string
		value float64
		want  string
	}{
		{"tanks.freshWater.0.currentLevel", 0.5, "50.0%"},
		{"tanks.freshWater.0.currentVolume", 0.25, "0.250 m³ (250 L)"},
		{"tanks.freshWater.0.capacity", 1, "1.000 m³ (1000 L)"},
		{"environment.outside.pressure", 101330, "1013.3 hPa"},
		{"environment.outside.temperature", 293.15, "20.0 °C"},
		{"something.else", 3.5, "3.5"},
	}

	for _, tt := range tests {
		got := formatMeasurement(sink.Measurement{Path: tt.path, Value: tt.value})
		if got != tt.want {
			t.Errorf("formatMeasurement(%s, %g) = %q, want %q", tt.path, tt.value, got, tt.want)
		}
	}
}

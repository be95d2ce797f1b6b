package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/charlie0129/tankgauge/pkg/events"
)

func event(t *testing.T, name string, payload any) events.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return events.Event{Name: name, Data: data}
}

func TestDescribeEvent(t *testing.T) {
	color.NoColor = true

	got := describeEvent(event(t, events.Measurement, events.MeasurementEvent{
		Path: "tanks.freshWater.0.currentLevel", Value: 0.25,
	}))
	if !strings.HasSuffix(got, " tanks.freshWater.0.currentLevel 25.0%") {
		t.Errorf("unexpected measurement line %q", got)
	}

	got = describeEvent(event(t, events.CalibrationStatus, events.CalibrationStatusEvent{
		From: "Inactive", To: "Running",
	}))
	if !strings.HasSuffix(got, " calibration Inactive -> Running") {
		t.Errorf("unexpected status line %q", got)
	}

	got = describeEvent(event(t, events.CalibrationAction, events.CalibrationActionEvent{
		Action: "Finish", Message: "saved 8 points",
	}))
	if !strings.HasSuffix(got, " calibration action Finish: saved 8 points") {
		t.Errorf("unexpected action line %q", got)
	}

	got = describeEvent(events.Event{Name: "other", Data: json.RawMessage(`{"a":1}`)})
	if got != `other {"a":1}` {
		t.Errorf("unexpected fallback line %q", got)
	}
}

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Publish(Measurement, MeasurementEvent{Path: "tanks.fuel.main.currentLevel", Value: 0.5, Ts: 1})

	ev := <-ch
	assert.Equal(t, Measurement, ev.Name)
	got, err := DecodeAs[MeasurementEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "tanks.fuel.main.currentLevel", got.Path)
	assert.Equal(t, 0.5, got.Value)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(Measurement, MeasurementEvent{Value: float64(i)})
	}
	assert.Len(t, ch, subscriberBuffer)

	h.Unsubscribe(ch)
	assert.Equal(t, 0, h.Subscribers())
	h.Unsubscribe(ch)
}

func TestNilHub(t *testing.T) {
	var h *EventHub
	assert.NotPanics(t, func() { h.Publish(CalibrationStatus, CalibrationStatusEvent{}) })
	assert.Equal(t, 0, h.Subscribers())
}

func TestDecodeAsEmpty(t *testing.T) {
	got, err := DecodeAs[CalibrationActionEvent](Event{Name: CalibrationAction})
	require.NoError(t, err)
	assert.Equal(t, CalibrationActionEvent{}, got)
}

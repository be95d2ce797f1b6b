package events

import "encoding/json"

// Event name constants
const (
	CalibrationStatus = "calibration.status"
	CalibrationAction = "calibration.action"
	Measurement       = "measurement"
)

// Event is a generic event from the daemon. Payload timestamps (ts) are Unix
// milliseconds.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// CalibrationStatusEvent is the typed payload for calibration.status.
type CalibrationStatusEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// CalibrationActionEvent is the typed payload for calibration.action.
type CalibrationActionEvent struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// MeasurementEvent is the typed payload for measurement.
type MeasurementEvent struct {
	Path  string  `json:"path"`
	Value float64 `json:"value"`
	Ts    int64   `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// If Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.MeasurementEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Path, payload.Value)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}

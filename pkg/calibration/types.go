package calibration

import (
	"strings"
	"time"
)

// Status is the state of the calibration session.
type Status string

const (
	StatusInactive Status = "Inactive"
	StatusRunning  Status = "Running"
)

// Action is an operator request to the calibration state machine.
type Action string

const (
	ActionNone   Action = "N"
	ActionStart  Action = "S"
	ActionFinish Action = "F"
	ActionAbort  Action = "A"
	ActionClear  Action = "C"
)

// actionAliases maps every accepted wire form, upper-cased, to its Action.
// The full words are what older clients send.
var actionAliases = map[string]Action{
	"N":      ActionNone,
	"S":      ActionStart,
	"F":      ActionFinish,
	"A":      ActionAbort,
	"C":      ActionClear,
	"NONE":   ActionNone,
	"START":  ActionStart,
	"FINISH": ActionFinish,
	"ABORT":  ActionAbort,
	"CLEAR":  ActionClear,
}

// ParseAction converts a wire value to an Action. Matching ignores case and
// surrounding whitespace. Unrecognized values are ActionNone.
func ParseAction(s string) Action {
	if a, ok := actionAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return a
	}
	return ActionNone
}

// String returns the full name of the action, used in logs and events.
func (a Action) String() string {
	switch a {
	case ActionStart:
		return "Start"
	case ActionFinish:
		return "Finish"
	case ActionAbort:
		return "Abort"
	case ActionClear:
		return "Clear"
	default:
		return "None"
	}
}

// View is a synthesized view model exposed via HTTP and used by the CLI. It
// derives from the controller state plus the live tapped raw value.
type View struct {
	Status       Status    `json:"status"`
	Samples      int       `json:"samples"`
	CurrentRaw   *float64  `json:"currentRaw,omitempty"`
	CurvePoints  int       `json:"curvePoints"`
	StartedAt    time.Time `json:"startedAt"`
	LastFinished time.Time `json:"lastFinished"`
	Message      string    `json:"message,omitempty"`
	Actions      []string  `json:"actions"`
}

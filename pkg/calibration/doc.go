// Package calibration implements the field calibration workflow of the tank
// level sensor. It contains:
//
//   - Status: the two states of a calibration session
//   - Action: the closed set of operator actions and their wire forms
//   - Controller: the state machine that samples the smoothed raw level while
//     a session runs and rebuilds the level curve when it finishes
//   - View: a synthesized view model returned by HTTP APIs and used by the CLI
//
// The Controller is not tied to a goroutine. The daemon calls Apply and Sample
// from its single scheduler goroutine.
package calibration

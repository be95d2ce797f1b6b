package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/calibration"
)

func newCalibrationActionCommand(use, short, done string, action calibration.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := apiClient.CalibrationAction(string(action))
			if err != nil {
				return fmt.Errorf("failed to %s calibration: %w", use, err)
			}
			cmd.Println(done)
			printCalibrationStatus(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func NewCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Aliases: []string{"calibrate", "cali"},
		Short:   "Record a calibration curve for the level sensor",
		Long: `Record a calibration curve for the level sensor.

Start a session with an empty tank, then fill it steadily until full and
finish the session. A raw reading is recorded every second. On finish the
readings are reduced to a monotonic curve, ending with an empty and full
endpoint, and saved.

"abort" drops the running session and keeps the saved curve. "clear" also
replaces the saved curve with the default (0, 0) to (4095, 1) line.`,
		GroupID: gCalibration,
	}

	jsonOutput := false
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show current calibration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := apiClient.GetCalibration()
			if err != nil {
				return fmt.Errorf("failed to fetch calibration status: %w", err)
			}
			if jsonOutput {
				b, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}
			printCalibrationStatus(cmd.OutOrStdout(), v)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")

	cmd.AddCommand(
		newCalibrationActionCommand("start", "Start a new calibration session", "Calibration started. Fill the tank and run \"tankgauge calibration finish\" when it is full.", calibration.ActionStart),
		newCalibrationActionCommand("finish", "Finish the session and save the new curve", "Calibration finished.", calibration.ActionFinish),
		newCalibrationActionCommand("abort", "Abort the session and discard collected samples", "Calibration aborted.", calibration.ActionAbort),
		newCalibrationActionCommand("clear", "Reset the curve to the default two-point curve and save it", "Calibration cleared, default curve saved. Use \"abort\" to drop a session without touching the curve.", calibration.ActionClear),
		statusCmd,
	)
	return cmd
}

func printCalibrationStatus(w io.Writer, v *calibration.View) {
	status := string(v.Status)
	if v.Status == calibration.StatusRunning {
		status = color.YellowString("%s", status)
	}
	fmt.Fprintf(w, "Status: %s\n", bold("%s", status))
	fmt.Fprintf(w, "Samples: %s\n", bold("%d", v.Samples))
	if v.CurrentRaw != nil {
		fmt.Fprintf(w, "Current raw: %s\n", bold("%.1f", *v.CurrentRaw))
	}
	fmt.Fprintf(w, "Curve points: %s\n", bold("%d", v.CurvePoints))
	if v.Status == calibration.StatusRunning && !v.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s (%s ago)\n", v.StartedAt.Format(time.RFC3339), time.Since(v.StartedAt).Round(time.Second))
	}
	if !v.LastFinished.IsZero() {
		fmt.Fprintf(w, "Last finished: %s\n", v.LastFinished.Format(time.RFC3339))
	}
	if v.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", v.Message)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/calibration"
	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/sink"
)

type statusData struct {
	measurements []sink.Measurement
	calibration  *calibration.View
	config       *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	measurements, err := apiClient.GetMeasurements()
	if err != nil {
		return nil, fmt.Errorf("failed to get measurements: %w", err)
	}

	view, err := apiClient.GetCalibration()
	if err != nil {
		return nil, fmt.Errorf("failed to get calibration status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		measurements: measurements,
		calibration:  view,
		config:       conf,
	}, nil
}

// formatMeasurement renders a value in the unit an operator expects from
// the path suffix.
func formatMeasurement(m sink.Measurement) string {
	switch {
	case strings.HasSuffix(m.Path, ".currentLevel"):
		return fmt.Sprintf("%.1f%%", m.Value*100)
	case strings.HasSuffix(m.Path, ".currentVolume"), strings.HasSuffix(m.Path, ".capacity"):
		return fmt.Sprintf("%.3f m³ (%.0f L)", m.Value, m.Value*1000)
	case strings.HasSuffix(m.Path, ".pressure"):
		return fmt.Sprintf("%.1f hPa", m.Value/100)
	case strings.HasSuffix(m.Path, ".temperature"):
		return fmt.Sprintf("%.1f °C", m.Value-273.15)
	default:
		return fmt.Sprintf("%g", m.Value)
	}
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of tankgauge",
		Long:    `Get latest measurements, calibration status, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Measurements:"))
			if len(data.measurements) == 0 {
				cmd.Println("  No measurements yet.")
			}
			for _, m := range data.measurements {
				cmd.Printf("  %s: %s\n", m.Path, bold("%s", formatMeasurement(m)))
			}

			cmd.Println()

			cmd.Println(bold("Calibration:"))
			status := string(data.calibration.Status)
			if data.calibration.Status == calibration.StatusRunning {
				status = color.YellowString("%s", status)
			}
			cmd.Printf("  Status: %s\n", bold("%s", status))
			if data.calibration.Status == calibration.StatusRunning {
				cmd.Printf("  Samples collected: %s\n", bold("%d", data.calibration.Samples))
			}
			if data.calibration.CurrentRaw != nil {
				cmd.Printf("  Current raw value: %s\n", bold("%.1f", *data.calibration.CurrentRaw))
			}
			cmd.Printf("  Curve points: %s\n", bold("%d", data.calibration.CurvePoints))
			if !data.calibration.LastFinished.IsZero() {
				cmd.Printf("  Last finished: %s\n", data.calibration.LastFinished.Local().Format("2006-01-02 15:04:05"))
			}
			if data.calibration.Message != "" {
				cmd.Printf("  %s\n", data.calibration.Message)
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Tank: %s\n", bold("%s/%s", conf.TankType(), conf.TankID()))
			cmd.Printf("  Capacity: %s\n", bold("%g L", conf.CapacityLiters()))
			cmd.Printf("  Level source: %s\n", conf.LevelSource())
			cmd.Printf("  Atmosphere source: %s\n", conf.AtmosphereSource())
			cmd.Printf("  Level interval: %s\n", conf.LevelInterval())
			cmd.Printf("  Capacity schedule: %s\n", conf.CapacitySchedule())
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}
}

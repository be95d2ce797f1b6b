package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/events"
	"github.com/charlie0129/tankgauge/pkg/sink"
)

func NewWatchCommand() *cobra.Command {
	filter := ""

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Stream live events from the daemon",
		GroupID: gBasic,
		Long: `Stream live events from the daemon until interrupted.

Use --event to receive only one kind of event, e.g. "measurement" or
"calibration.status".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return apiClient.Stream(ctx, filter, func(ev events.Event) error {
				cmd.Println(describeEvent(ev))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter, "event", "", "only show events with this name")

	return cmd
}

func describeEvent(ev events.Event) string {
	switch ev.Name {
	case events.Measurement:
		m, err := events.DecodeAs[events.MeasurementEvent](ev)
		if err != nil {
			break
		}
		return stamp(m.Ts) + " " + m.Path + " " + formatMeasurement(sink.Measurement{Path: m.Path, Value: m.Value})
	case events.CalibrationStatus:
		s, err := events.DecodeAs[events.CalibrationStatusEvent](ev)
		if err != nil {
			break
		}
		line := stamp(s.Ts) + " calibration " + s.From + " -> " + bold("%s", s.To)
		if s.Message != "" {
			line += ": " + s.Message
		}
		return line
	case events.CalibrationAction:
		a, err := events.DecodeAs[events.CalibrationActionEvent](ev)
		if err != nil {
			break
		}
		line := stamp(a.Ts) + " calibration action " + bold("%s", a.Action)
		if a.Message != "" {
			line += ": " + a.Message
		}
		return line
	}
	return ev.Name + " " + string(ev.Data)
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05.000")
}

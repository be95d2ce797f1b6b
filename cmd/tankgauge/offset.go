package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/app"
)

func NewOffsetCommand() *cobra.Command {
	var (
		multiplier float64
		offset     float64
	)

	cmd := &cobra.Command{
		Use:       "offset <pressure|temperature>",
		Short:     "Get or set atmospheric sensor offsets",
		GroupID:   gCalibration,
		ValidArgs: []string{app.OffsetPressure, app.OffsetTemperature},
		Long: `Get or set the linear correction applied to an atmospheric sensor.

The corrected value is raw * multiplier + offset. Pressure is in Pa and
temperature in K. Without flags the current correction is printed; flags that
are not given keep their current value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensor := args[0]
			f := cmd.Flags()

			if !f.Changed("multiplier") && !f.Changed("offset") {
				p, err := apiClient.GetOffset(sensor)
				if err != nil {
					return err
				}
				cmd.Printf("multiplier: %s\noffset: %s\n", bold("%g", p.Multiplier), bold("%g", p.Offset))
				return nil
			}

			var m, o *float64
			if f.Changed("multiplier") {
				m = &multiplier
			}
			if f.Changed("offset") {
				o = &offset
			}

			p, err := apiClient.SetOffset(sensor, m, o)
			if err != nil {
				return fmt.Errorf("failed to set %s offset: %w", sensor, err)
			}

			logrus.WithFields(logrus.Fields{
				"multiplier": p.Multiplier,
				"offset":     p.Offset,
			}).Infof("successfully set %s offset", sensor)
			return nil
		},
	}

	cmd.Flags().Float64Var(&multiplier, "multiplier", 1, "scale applied to the raw value")
	cmd.Flags().Float64Var(&offset, "offset", 0, "constant added after scaling")

	return cmd
}

package main

import (
	"fmt"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/curve"
)

func NewCurveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "curve",
		Short:   "Show, export or import the calibration curve",
		GroupID: gCalibration,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the curve points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := apiClient.GetCurve()
			if err != nil {
				return err
			}
			cmd.Printf("%-10s %s\n", bold("raw"), bold("level"))
			for _, s := range doc.Samples {
				cmd.Printf("%-10.1f %.1f%%\n", s.Raw, s.Fraction*100)
			}
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the curve as YAML",
		Long:  `Export the curve as YAML to file, or to stdout if no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := apiClient.GetCurve()
			if err != nil {
				return err
			}
			if doc.ExportedAt.IsZero() {
				doc.ExportedAt = time.Now().UTC()
			}

			if len(args) == 0 {
				return curve.WriteYAML(cmd.OutOrStdout(), *doc)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to create %s", args[0])
			}
			defer f.Close()

			if err := curve.WriteYAML(f, *doc); err != nil {
				return err
			}
			logrus.Infof("exported %d points to %s", len(doc.Samples), args[0])
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the curve with one from a YAML file",
		Long: `Replace the curve with one from a YAML file written by "tankgauge curve export".

The curve must be strictly increasing in both raw value and level and span the
full sensor range.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to open %s", args[0])
			}
			defer f.Close()

			doc, err := curve.ReadYAML(f)
			if err != nil {
				return err
			}
			if err := curve.Validate(doc.Samples, doc.FullScale); err != nil {
				return fmt.Errorf("invalid curve in %s: %w", args[0], err)
			}

			ret, err := apiClient.SetCurve(doc)
			if err != nil {
				return fmt.Errorf("failed to import curve: %w", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}

	cmd.AddCommand(showCmd, exportCmd, importCmd)
	return cmd
}

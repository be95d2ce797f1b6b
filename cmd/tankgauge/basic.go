package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tankgauge/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewCapacityCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "capacity [liters]",
		Short:   "Get or set tank capacity",
		GroupID: gBasic,
		Long: `Get or set tank capacity in liters.

Without an argument the current capacity is printed. The capacity is published
in cubic meters and used to compute the current volume.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				liters, err := apiClient.GetCapacity()
				if err != nil {
					return err
				}
				cmd.Printf("%g L\n", liters)
				return nil
			}

			liters, err := parseFloatArg(args, "capacity")
			if err != nil {
				return err
			}
			if liters <= 0 {
				return fmt.Errorf("capacity must be positive, got %g", liters)
			}

			ret, err := apiClient.SetCapacity(liters)
			if err != nil {
				return fmt.Errorf("failed to set capacity: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set tank capacity to %g L", liters)

			return nil
		},
	}
}

func NewTankIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tank-id [id]",
		Short:   "Get or set tank identifier",
		GroupID: gBasic,
		Long: `Get or set the tank identifier used in output paths.

The new identifier is saved immediately but output paths only change after the
daemon restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				id, err := apiClient.GetTankID()
				if err != nil {
					return err
				}
				cmd.Println(id)
				return nil
			}

			ret, err := apiClient.SetTankID(args[0])
			if err != nil {
				return fmt.Errorf("failed to set tank id: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tasks",
		Short:   "List scheduled daemon tasks",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := apiClient.GetTasks()
			if err != nil {
				return err
			}

			for _, t := range tasks {
				cmd.Printf("%-12s next %s  runs %d", t.Name, t.NextRun.Format("15:04:05.000"), t.Runs)
				if t.Panics > 0 {
					cmd.Printf("  %s", bold("panics %d", t.Panics))
				}
				cmd.Println()
			}

			return nil
		},
	}
}

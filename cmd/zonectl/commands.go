package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/leozw/zone-health/internal/printer"
	"github.com/leozw/zone-health/pkg/client"
)

const requestTimeout = 2 * time.Minute

func (f *globalFlags) client() (*client.Client, error) {
	if err := printer.ValidateFormat(f.Output); err != nil {
		return nil, err
	}
	return client.New(f.Server, f.Token), nil
}

func (f *globalFlags) printChecks(checks ...client.Check) error {
	if f.Output == printer.FormatJSON {
		return printer.JSON(os.Stdout, checks)
	}
	rows := make([]printer.Row, 0, len(checks))
	for _, c := range checks {
		rows = append(rows, printer.Row{Info: c.Info, Outcome: c.Outcome})
	}
	return printer.Checks(os.Stdout, rows)
}

func (f *globalFlags) printMutation(m client.Mutation) error {
	if f.Output == printer.FormatJSON {
		return printer.JSON(os.Stdout, m)
	}
	if err := f.printChecks(m.Check); err != nil {
		return err
	}
	if !m.Persisted {
		fmt.Fprintf(os.Stderr, "warning: change applied but not persisted: %s\n", m.Error)
	}
	return nil
}

func addStatusCommand(parent *cobra.Command, flags *globalFlags) {
	parent.AddCommand(&cobra.Command{
		Use:          "status",
		Short:        "Show the status tally of all checks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			snap, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if flags.Output == printer.FormatJSON {
				return printer.JSON(os.Stdout, snap)
			}
			return printer.Counters(os.Stdout, snap.Counters, snap.Checking)
		},
	})
}

func addListCommand(parent *cobra.Command, flags *globalFlags) {
	var status string

	cmd := &cobra.Command{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List all checks with their latest outcome",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			checks, err := c.ListChecks(ctx, status)
			if err != nil {
				return fmt.Errorf("failed to list checks: %w", err)
			}
			return flags.printChecks(checks...)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show checks with this status")
	parent.AddCommand(cmd)
}

func addGetCommand(parent *cobra.Command, flags *globalFlags) {
	parent.AddCommand(&cobra.Command{
		Use:          "get ID",
		Short:        "Show one check",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			check, err := c.Check(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get check %s: %w", args[0], err)
			}
			return flags.printChecks(check)
		},
	})
}

func addRunCommand(parent *cobra.Command, flags *globalFlags) {
	var wait bool

	cmd := &cobra.Command{
		Use:   "run [ID]",
		Short: "Run one check, or all checks when no ID is given",
		Long: `Run one check now and print its outcome.

Without an ID every check is run concurrently; results are published together
once the last check reports. Use --wait to block until then.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if len(args) == 1 {
				check, err := c.Run(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to run check %s: %w", args[0], err)
				}
				return flags.printChecks(check)
			}

			snap, err := c.RunAll(ctx, wait)
			if err != nil {
				return fmt.Errorf("failed to run checks: %w", err)
			}
			if snap == nil {
				fmt.Fprintln(os.Stdout, "Running all checks.")
				return nil
			}
			if flags.Output == printer.FormatJSON {
				return printer.JSON(os.Stdout, snap)
			}
			return printer.Counters(os.Stdout, snap.Counters, snap.Checking)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until all results are published")
	parent.AddCommand(cmd)
}

func addToggleCommands(parent *cobra.Command, flags *globalFlags) {
	for _, active := range []bool{true, false} {
		use, short := "enable ID", "Enable a check and run it once"
		if !active {
			use, short = "disable ID", "Disable a check"
		}

		parent.AddCommand(&cobra.Command{
			Use:          use,
			Short:        short,
			Args:         cobra.ExactArgs(1),
			SilenceUsage: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := flags.client()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()

				m, err := c.SetActive(ctx, args[0], active)
				if err != nil {
					return fmt.Errorf("failed to update check %s: %w", args[0], err)
				}
				return flags.printMutation(m)
			},
		})
	}
}

func addIntervalCommand(parent *cobra.Command, flags *globalFlags) {
	parent.AddCommand(&cobra.Command{
		Use:          "interval ID SECONDS",
		Short:        "Change how often a check runs",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := cast.ToIntE(args[1])
			if err != nil || seconds <= 0 {
				return fmt.Errorf("interval must be a positive number of seconds, got %q", args[1])
			}

			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			m, err := c.SetInterval(ctx, args[0], seconds)
			if err != nil {
				return fmt.Errorf("failed to update check %s: %w", args[0], err)
			}
			return flags.printMutation(m)
		},
	})
}

func addDeploymentCommand(parent *cobra.Command, flags *globalFlags) {
	parent.AddCommand(&cobra.Command{
		Use:          "deployment",
		Short:        "Show the zone inventory the checks run against",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			d, err := c.Deployment(ctx)
			if err != nil {
				return fmt.Errorf("failed to get deployment: %w", err)
			}
			return printer.JSON(os.Stdout, d)
		},
	})
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the registered concepts",
		Long: `Probe every registered concept through its transport and report
availability and probe latency per concept.

Example:
  weft --config weft.yaml health`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd, rootOpts)
		},
	}
	return cmd
}

func runHealth(cmd *cobra.Command, opts *RootOptions) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfigOrDefault(opts.Config)
	if err != nil {
		return err
	}
	app, err := openApp(cfg, newLogger(cmd.ErrOrStderr(), opts.Verbose))
	if err != nil {
		return err
	}
	defer app.Close()

	report := app.Kernel.Health(cmd.Context())
	if f.Format == "json" {
		return f.OK(report)
	}

	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	unavailable := 0
	for _, name := range names {
		h := report[name]
		status := "available"
		if !h.Available {
			status = "unavailable"
			unavailable++
		}
		fmt.Fprintf(f.Writer, "%s: %s (%dms)\n", name, status, h.LatencyMs)
	}
	if unavailable > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d concept(s) unavailable", unavailable)}
	}
	return nil
}

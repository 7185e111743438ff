package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run each YAML scenario against a fresh kernel and report pass or
fail. A scenario registers the built-in concepts over an in-memory
store, loads its rule files, drives the declared invocations and
checks its assertions against the flow trace and final state.

Example:
  weft test scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runTest(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	failed := 0
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: path, Err: err}
		}

		result, err := harness.Run(cmd.Context(), scenario)
		if err != nil {
			failed++
			f.Fail(fmt.Sprintf("FAIL %s: %v", scenario.Name, err))
			continue
		}

		if result.Pass {
			if f.Format == "json" {
				if err := f.OK(map[string]any{"scenario": scenario.Name, "pass": true}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(f.Writer, "PASS %s\n", scenario.Name)
			}
			continue
		}

		failed++
		if f.Format == "json" {
			if err := f.OK(map[string]any{
				"scenario": scenario.Name,
				"pass":     false,
				"errors":   result.Errors,
			}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(f.Writer, "FAIL %s\n", scenario.Name)
			for _, msg := range result.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", msg)
			}
		}
	}

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d scenario(s) failed", failed, len(paths))}
	}
	return nil
}

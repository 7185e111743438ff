package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Args string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <Concept.action>",
		Short: "Invoke an action and dump the full flow trace",
		Long: `Invoke one concept action and print every flow log event the flow
produced: the seed invocation, completions, sync firings with their
variable bindings, and the settled marker.

Example:
  weft trace User.delete --args '{"user":"u1"}' --config weft.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action input as JSON")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions, ref string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	concept, action, err := splitActionRef(ref)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: err.Error()}
	}
	input, err := parseInput(opts.Args)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "invalid --args", Err: err}
	}

	cfg, err := loadConfigOrDefault(opts.Config)
	if err != nil {
		return err
	}
	app, err := openApp(cfg, newLogger(cmd.ErrOrStderr(), opts.Verbose))
	if err != nil {
		return err
	}
	defer app.Close()

	comp, invokeErr := app.Kernel.InvokeConcept(cmd.Context(), concept, action, input)

	// Even a faulted flow leaves a trace worth printing; find it from
	// the log when the completion never arrived.
	flow := comp.Flow
	if flow == "" {
		flows := app.Kernel.FlowLog().Flows()
		if len(flows) == 0 {
			if invokeErr != nil {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("trace %s", ref), Err: invokeErr}
			}
			return &ExitError{Code: ExitFailure, Message: "no flow recorded"}
		}
		flow = flows[len(flows)-1]
	}

	events := app.Kernel.FlowLog().Events(flow)
	if f.Format == "json" {
		if err := f.OK(events); err != nil {
			return err
		}
	} else {
		for _, ev := range events {
			line, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			fmt.Fprintln(f.Writer, string(line))
		}
	}

	if invokeErr != nil {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("trace %s", ref), Err: invokeErr}
	}
	return nil
}

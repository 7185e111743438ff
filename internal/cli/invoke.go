package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/ir"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <Concept.action>",
		Short: "Invoke one concept action inside a fresh flow",
		Long: `Invoke one concept action inside a fresh flow and print its
completion. Sync rules from the config still observe the completion;
the command returns after the flow has fully settled.

Example:
  weft invoke User.register --args '{"user":"u1","name":"alice"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action input as JSON")

	return cmd
}

func runInvoke(cmd *cobra.Command, opts *InvokeOptions, ref string) error {
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

	f.Logf("invoking %s.%s", concept, action)
	comp, err := app.Kernel.InvokeConcept(cmd.Context(), concept, action, input)
	if err != nil {
		f.Fail(err.Error())
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("invoke %s", ref), Err: err}
	}

	return printCompletion(f, comp)
}

func printCompletion(f *Formatter, comp ir.Completion) error {
	if f.Format == "json" {
		return f.OK(map[string]any{
			"flow":    comp.Flow,
			"variant": comp.Variant,
			"output":  ir.ToGo(comp.Output),
		})
	}

	output, err := ir.MarshalCanonical(comp.Output)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "flow:    %s\n", comp.Flow)
	fmt.Fprintf(f.Writer, "variant: %s\n", comp.Variant)
	fmt.Fprintf(f.Writer, "output:  %s\n", output)
	return nil
}

// splitActionRef splits "Concept.action".
func splitActionRef(ref string) (concept, action string, err error) {
	concept, action, ok := strings.Cut(ref, ".")
	if !ok || concept == "" || action == "" {
		return "", "", fmt.Errorf("invalid action reference %q, want \"Concept.action\"", ref)
	}
	return concept, action, nil
}

// parseInput decodes a JSON object literal into an ir.Object.
func parseInput(raw string) (ir.Object, error) {
	v, err := ir.FromJSON([]byte(raw))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("input must be a JSON object, got %T", v)
	}
	return obj, nil
}

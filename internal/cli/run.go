package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/ir"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve request-driven flows from stdin",
		Long: `Read newline-delimited JSON request bodies from stdin, run each
through a request-driven flow, and print the response. The command
waits for each flow to fully settle (including eventual work) before
reading the next request, so output order matches input order.

Example:
  echo '{"path":"/ping"}' | weft run --config weft.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
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

	f.Logf("serving with %d sync rules", len(app.Kernel.Syncs()))

	ctx := cmd.Context()
	faults := 0
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		body, err := parseInput(line)
		if err != nil {
			faults++
			f.Fail(fmt.Sprintf("bad request: %v", err))
			continue
		}

		resp, err := app.Kernel.HandleRequest(ctx, body)
		if err != nil {
			return err
		}
		if resp.Failed() {
			faults++
			f.Fail(fmt.Sprintf("flow %s faulted: %s: %s", resp.Flow, resp.Code, resp.Error))
		} else if f.Format == "json" {
			if err := f.OK(map[string]any{
				"flow": resp.Flow,
				"body": ir.ToGo(resp.Body),
			}); err != nil {
				return err
			}
		} else {
			rendered, err := ir.MarshalCanonical(resp.Body)
			if err != nil {
				return err
			}
			fmt.Fprintf(f.Writer, "%s %s\n", resp.Flow, rendered)
		}

		if err := app.Kernel.AwaitSettled(ctx, resp.Flow); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if faults > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d request(s) failed", faults)}
	}
	return nil
}

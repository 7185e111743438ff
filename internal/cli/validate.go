package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/rulefile"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules.cue>...",
		Short: "Validate sync rule files against the built-in concepts",
		Long: `Parse each CUE rule file and validate every sync it declares
against the registered concept schemas: concepts and actions must
exist, variants must be declared, and every variable must be bound
before use.

Exit code 1 means at least one rule is invalid; 2 means a file could
not be read at all.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfigOrDefault(opts.Config)
	if err != nil {
		return err
	}
	// Rules from the config are registered first, so files under
	// validation may reference syncs alongside an existing rule set.
	app, err := openApp(cfg, newLogger(cmd.ErrOrStderr(), opts.Verbose))
	if err != nil {
		return err
	}
	defer app.Close()

	invalid := 0
	for _, path := range paths {
		syncs, err := rulefile.LoadFile(path)
		if err != nil {
			var parseErr *rulefile.ParseError
			if errors.As(err, &parseErr) {
				invalid++
				f.Fail(fmt.Sprintf("%s: %v", path, err))
				continue
			}
			return &ExitError{Code: ExitCommandError, Message: path, Err: err}
		}

		fileValid := true
		for _, s := range syncs {
			if err := app.Kernel.RegisterSync(s); err != nil {
				fileValid = false
				var regErr *catalog.RegistrationError
				if errors.As(err, &regErr) {
					for _, finding := range regErr.Findings {
						f.Fail(fmt.Sprintf("%s: sync %q: %v", path, s.Name, finding))
					}
				} else {
					f.Fail(fmt.Sprintf("%s: sync %q: %v", path, s.Name, err))
				}
			}
		}
		if fileValid {
			if err := f.OK(fmt.Sprintf("%s: %d sync(s) valid", path, len(syncs))); err != nil {
				return err
			}
		} else {
			invalid++
		}
	}

	if invalid > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d file(s) invalid", invalid, len(paths))}
	}
	return nil
}

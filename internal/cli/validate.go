package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filament-ui/filament/internal/blueprint"
)

// ValidationResult holds validation results for one blueprint file.
type ValidationResult struct {
	Valid    bool                        `json:"valid"`
	Errors   []blueprint.ValidationError `json:"errors,omitempty"`
	Warnings []blueprint.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <blueprint.cue>",
		Short: "Validate a circuit blueprint",
		Long: `Validate a CUE circuit blueprint without building it.

Checks CUE syntax, required fields, name uniqueness, endpoint
references, and relay schema compatibility. Static relay-graph cycles
are reported as warnings: the runtime stops them with a NO_DAG error,
but the author should hear about the loop before an event does.

Exit codes:
  0 - Blueprint valid (warnings allowed)
  1 - Compile or validation errors
  2 - Command error (file not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadBlueprint(path)
	if err != nil {
		if ie, ok := asInvalid(err); ok {
			return outputValidationErrors(formatter, ie.Errors)
		}
		if ce, ok := asCompile(err); ok {
			return outputValidationErrors(formatter, []blueprint.ValidationError{{
				Field:   ce.Field,
				Message: ce.Error(),
				Code:    "E100",
			}})
		}
		// Read failures carry their own exit code.
		_ = formatter.Error("E100", err.Error(), nil)
		return err
	}

	bp := loaded.Blueprint
	formatter.VerboseLog("blueprint %s: %d facts, %d relays, %d probes, %d wires",
		path, len(bp.Facts), len(bp.Relays), len(bp.Probes), len(bp.Wires))

	return outputValidateSuccess(formatter, loaded.Warnings)
}

// outputValidateSuccess reports a valid blueprint, cycle warnings
// included.
func outputValidateSuccess(formatter *OutputFormatter, warnings []blueprint.CycleWarning) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Warnings: warnings})
	}

	fmt.Fprintln(formatter.Writer, "✓ Blueprint valid")
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
	return nil
}

// outputValidationErrors reports compile or validation errors and maps
// them to exit code 1.
func outputValidationErrors(formatter *OutputFormatter, errs []blueprint.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Entities []string                   `json:"entities"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Cycles   []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [entities]",
		Short: "Validate entity declarations",
		Long: `Validate CUE entity declarations without running any query.

Checks names, field types and belongs-to associations, and reports
association loops as warnings. The entities argument defaults to the
entities path in soqlkit.yaml.

Exit codes:
  0 - All entities valid (loops are warnings only)
  1 - Validation errors found
  2 - Command error (path not found, CUE syntax error, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	catalog, err := loadCatalog(cfg, args, formatter)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		formatter.VerboseLog("Validating entity: %s", name)
		names = append(names, name)
	}
	slices.Sort(names)

	result := ValidationResult{
		Entities: names,
		Errors:   compiler.Validate(catalog),
		Cycles:   compiler.AnalyzeCycles(catalog),
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		if !result.Valid {
			if err := formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error: &CLIError{
					Code:    result.Errors[0].Code,
					Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
				},
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
		}
		return formatter.Success(result)
	}

	return outputValidateText(formatter, result)
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	if !result.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	} else {
		fmt.Fprintf(w, "✓ %d entit(ies) valid: %s\n", len(result.Entities), strings.Join(result.Entities, ", "))
	}

	if len(result.Cycles) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Association loops:")
		for _, c := range result.Cycles {
			fmt.Fprintf(w, "  [%s] %s\n", c.Level, c.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

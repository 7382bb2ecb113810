package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filibuster/internal/analysis"
)

// ValidationResult describes a checked analysis config.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Rules  []RuleSummary     `json:"rules,omitempty"`
	Config *analysis.Config  `json:"config,omitempty"`
	Error  *ValidationDetail `json:"error,omitempty"`
}

// RuleSummary counts the faults one rule declares.
type RuleSummary struct {
	Name         string `json:"name"`
	Exceptions   int    `json:"exceptions"`
	Transformers int    `json:"transformers"`
	Byzantine    int    `json:"byzantine"`
}

// ValidationDetail locates a config error.
type ValidationDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate an analysis config",
		Long: `Load an analysis config and check its rules without starting an engine.

YAML and JSON files are decoded strictly (unknown fields are errors).
Files ending in .cue are evaluated as CUE and must be concrete.

Exit codes:
  0 - Config is valid
  1 - Config is invalid
  2 - Config file not found`,
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
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := analysis.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return configFailure(formatter, err)
		}
		return outputValidationError(formatter, err)
	}

	result := ValidationResult{Valid: true, Config: cfg}
	for _, r := range cfg.Rules {
		result.Rules = append(result.Rules, RuleSummary{
			Name:         r.Name,
			Exceptions:   len(r.Exceptions),
			Transformers: len(r.Transformers),
			Byzantine:    len(r.Byzantine),
		})
		formatter.VerboseLog("rule %s: services=%q methods=%q", r.Name, r.Services, r.Methods)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Analysis config valid (%d rule(s))\n", len(result.Rules))
	for _, r := range result.Rules {
		fmt.Fprintf(w, "  %s: %d exception(s), %d transformer(s), %d byzantine value(s)\n",
			r.Name, r.Exceptions, r.Transformers, r.Byzantine)
	}
	if cfg.MaxIterations > 0 {
		fmt.Fprintf(w, "  max_iterations: %d\n", cfg.MaxIterations)
	}
	return nil
}

func outputValidationError(formatter *OutputFormatter, err error) error {
	detail := &ValidationDetail{Message: err.Error()}
	var ce *analysis.ConfigError
	if errors.As(err, &ce) {
		detail.Field = ce.Field
		detail.Message = ce.Message
		if ce.Pos.IsValid() {
			detail.Line = ce.Pos.Line()
		}
	}

	if formatter.JSON() {
		_ = formatter.Error(ErrCodeConfigInvalid, detail.Message, ValidationResult{Valid: false, Error: detail})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		if detail.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", detail.Line)
		}
		if detail.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", ErrCodeConfigInvalid, detail.Field, detail.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeConfigInvalid, detail.Message)
		}
	}
	return WrapExitError(ExitFailure, "validation failed", err)
}

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"argus/detect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ruleSummary is the JSON view of one loaded rule
type ruleSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Severity  string   `json:"severity"`
	Window    string   `json:"window,omitempty"`
	Threshold int      `json:"threshold,omitempty"`
	Actions   []string `json:"actions"`
}

type validateResult struct {
	Valid    bool          `json:"valid"`
	Version  string        `json:"version,omitempty"`
	Rules    []ruleSummary `json:"rules,omitempty"`
	Problems []string      `json:"problems,omitempty"`
}

func newRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule catalogs",
	}
	rulesCmd.AddCommand(newValidateCmd())
	return rulesCmd
}

// newValidateCmd creates the 'rules validate' subcommand
func newValidateCmd() *cobra.Command {
	var regexTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a rule catalog",
		Long: `Load a YAML or JSON rule catalog exactly as the server would and report
every problem found. Exits non-zero when the catalog is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validateCatalog(args[0], regexTimeout)
			out := cmd.OutOrStdout()

			if outputJSON {
				if encErr := outputAsJSON(out, result); encErr != nil {
					return encErr
				}
			} else {
				renderValidateResult(out, args[0], result)
			}

			if !result.Valid {
				return fmt.Errorf("catalog %s is invalid", args[0])
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&regexTimeout, "regex-timeout", detect.DefaultRegexTimeout, "Match timeout compiled into pattern rules")
	return cmd
}

func validateCatalog(path string, regexTimeout time.Duration) validateResult {
	catalog, err := detect.LoadCatalog(path, regexTimeout, zap.NewNop().Sugar())
	if err != nil {
		var verr *detect.ValidationError
		if errors.As(err, &verr) {
			return validateResult{Problems: verr.Problems}
		}
		return validateResult{Problems: []string{err.Error()}}
	}

	result := validateResult{Valid: true, Version: catalog.Version()}
	for _, rule := range catalog.Rules() {
		s := ruleSummary{
			ID:       rule.ID,
			Name:     rule.Name,
			Kind:     rule.Kind.String(),
			Severity: string(rule.Severity),
			Actions:  catalog.ActionsFor(rule),
		}
		if s.Actions == nil {
			s.Actions = []string{}
		}
		if rule.Window > 0 {
			s.Window = rule.Window.String()
			s.Threshold = rule.Threshold
		}
		result.Rules = append(result.Rules, s)
	}
	return result
}

func renderValidateResult(w io.Writer, path string, result validateResult) {
	if !result.Valid {
		errorColor.Fprintf(w, "✗ %s is invalid\n", path)
		for _, p := range result.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		return
	}

	successColor.Fprintf(w, "✓ %s is valid\n", path)
	infoColor.Fprintf(w, "Version: %s\n", result.Version)
	if len(result.Rules) == 0 {
		warningColor.Fprintln(w, "Catalog contains no rules")
		return
	}

	headerColor.Fprintln(w, "RULES")
	fmt.Fprintln(w, strings.Repeat("=", 90))
	fmt.Fprintf(w, "%-24s %-10s %-9s %-14s %s\n", "ID", "Kind", "Severity", "Window", "Actions")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	inert := 0
	for _, r := range result.Rules {
		window := "-"
		if r.Window != "" {
			window = fmt.Sprintf("%d in %s", r.Threshold, r.Window)
		}
		actions := strings.Join(r.Actions, ",")
		if actions == "" {
			actions = "-"
		}
		fmt.Fprintf(w, "%-24s %-10s %-9s %-14s %s\n", r.ID, r.Kind, r.Severity, window, actions)
		if r.Kind == "inert" {
			inert++
		}
	}
	if inert > 0 {
		warningColor.Fprintf(w, "%d rule(s) are inert and will never fire\n", inert)
	}
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/policy/provider"
	"mercator-hq/saturn/pkg/policy/templates"
)

var validateFlags struct {
	file   string
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy bindings file",
	Long: `Validate a policy bindings file.

The file is parsed, every binding is checked (unique ids, known templates,
selectors) and every policy chain is built from its template, so parameter
errors are reported too.

Examples:
  # Validate the bindings file of the configuration
  saturn validate

  # Validate a specific file and print JSON
  saturn validate --file policies.yaml --format json`,
	RunE: validateBindings,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "bindings file (defaults to policy.file_path)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

type bindingSummary struct {
	ID        string `json:"id"`
	Template  string `json:"template"`
	Order     int    `json:"order"`
	AppliesTo string `json:"applies_to"`
}

type validationReport struct {
	File     string           `json:"file"`
	Valid    bool             `json:"valid"`
	Policies []bindingSummary `json:"policies,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
}

func validateBindings(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return err
	}

	path := validateFlags.file
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Policy.FilePath
	}

	report := checkBindings(path)

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	if !report.Valid {
		return cli.NewConfigError(path, fmt.Sprintf("%d validation error(s)", len(report.Errors)))
	}
	return nil
}

func checkBindings(path string) validationReport {
	report := validationReport{File: path}
	catalog := templates.NewCatalog(nil, slog.New(slog.DiscardHandler))

	bindings, err := provider.LoadBindings(path, provider.DefaultMaxFileSize)
	if err == nil {
		err = provider.ValidateBindings(bindings, catalog)
	}
	if err == nil {
		_, err = provider.BuildPolicies(bindings, catalog)
	}

	if err != nil {
		var list *provider.ErrorList
		if errors.As(err, &list) {
			for _, e := range list.Errors {
				report.Errors = append(report.Errors, e.Error())
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
		return report
	}

	report.Valid = true
	for _, b := range bindings {
		report.Policies = append(report.Policies, bindingSummary{
			ID:        b.ID,
			Template:  b.Template,
			Order:     b.Order,
			AppliesTo: appliesTo(b),
		})
	}
	return report
}

func appliesTo(b provider.Binding) string {
	var parts []string
	if b.Source != nil {
		parts = append(parts, "source "+selectorString(b.Source))
	}
	if b.Operation != nil {
		parts = append(parts, "operation "+selectorString(b.Operation))
	}
	return strings.Join(parts, ", ")
}

func selectorString(s *provider.Selector) string {
	name := s.Name
	if name == "" {
		name = "*"
	}
	return s.Namespace + ":" + name
}

func printReport(cmd *cobra.Command, report validationReport) {
	out := cmd.OutOrStdout()
	if !report.Valid {
		fmt.Fprintf(out, "✗ %s is invalid\n", report.File)
		for _, e := range report.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
		return
	}

	fmt.Fprintf(out, "✓ %s is valid (%d policies)\n", report.File, len(report.Policies))
	for _, p := range report.Policies {
		fmt.Fprintf(out, "  %-20s %-16s order=%-4d %s\n", p.ID, p.Template, p.Order, p.AppliesTo)
	}
}

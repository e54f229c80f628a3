package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/config"
	ferrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/i18n"
)

var (
	validateStrict bool
	validateFormat string
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and message catalogs",
	Long: `Validate the configuration and message catalogs, including:

- Unknown locale codes or directions in the locale table
- A default locale missing from the table
- Invalid server, store, catalog and log settings
- Catalog files that fail to parse
- Messages defined for the default locale but missing in another locale

Examples:
  folio validate                  # Report problems, fail on errors
  folio validate --strict         # Also fail on warnings and missing messages
  folio validate --format json    # Output results as JSON`,
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Fail on warnings and missing messages")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

// ValidationSummary is the outcome of folio validate.
type ValidationSummary struct {
	Valid    bool                `json:"valid"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Missing  map[string][]string `json:"missing,omitempty"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	summary := validateConfig()

	if err := writeSummary(cmd.OutOrStdout(), summary, validateFormat); err != nil {
		return err
	}

	if !summary.Valid {
		return fmt.Errorf("validation failed with %d error(s)", len(summary.Errors))
	}
	if validateStrict && (len(summary.Warnings) > 0 || len(summary.Missing) > 0) {
		return fmt.Errorf("validation found %d warning(s) and %d locale(s) with missing messages",
			len(summary.Warnings), len(summary.Missing))
	}

	return nil
}

// validateConfig loads the configuration and catalogs and collects every
// problem instead of stopping at the first.
func validateConfig() *ValidationSummary {
	summary := &ValidationSummary{Valid: true}

	cfg, err := config.Load()
	if err != nil {
		summary.Valid = false
		summary.Errors = append(summary.Errors, errorLines(err)...)
		return summary
	}
	summary.Warnings = config.Warnings(cfg)

	catalog, err := i18n.NewCatalog(i18n.Options{Locales: cfg.Locales(), Dir: cfg.Catalog.Dir})
	if err != nil {
		summary.Valid = false
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}

	for code, ids := range catalog.Missing() {
		if summary.Missing == nil {
			summary.Missing = make(map[string][]string)
		}
		summary.Missing[code.String()] = ids
	}

	return summary
}

// errorLines splits a validation failure into one line per field.
func errorLines(err error) []string {
	var fe *ferrors.FolioError
	if !errors.As(err, &fe) || fe.Code != ferrors.ErrCodeValidationFailed {
		return []string{err.Error()}
	}

	return strings.Split(fe.Message, "; ")
}

func writeSummary(w io.Writer, summary *ValidationSummary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	for _, e := range summary.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warning := range summary.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	codes := make([]string, 0, len(summary.Missing))
	for code := range summary.Missing {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "missing in %s: %v\n", code, summary.Missing[code])
	}

	if summary.Valid {
		fmt.Fprintln(w, "Configuration is valid")
	}

	return nil
}

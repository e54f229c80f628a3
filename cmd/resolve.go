package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/validation"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Show how a request would be routed",
	Long: `Resolve a request target against the configured locales without starting
the server. PATH is site relative and may carry a query and fragment.

Examples:
  folio resolve /about                          # First visit, no preference
  folio resolve /about --accept "fr-FR,en;q=0.8"
  folio resolve "/blog?page=2" --stored en -o json
  folio resolve /en/about --current ar          # Explicit switch`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

// resolveOptions holds the resolve flags.
type resolveOptions struct {
	stored  string
	accept  string
	current string
	output  string
}

var resolveOpts resolveOptions

func init() {
	rootCmd.AddCommand(resolveCmd)
	addResolveFlags(resolveCmd.Flags(), &resolveOpts)
}

func addResolveFlags(fs *pflag.FlagSet, opts *resolveOptions) {
	fs.StringVar(&opts.stored, "stored", "", "Stored preference, as read from the cookie")
	fs.StringVar(&opts.accept, "accept", "", "Accept-Language header value")
	fs.StringVar(&opts.current, "current", "", "Locale the client currently considers active")
	fs.StringVarP(&opts.output, "output", "o", "yaml", "Output format (yaml, json)")
}

// Resolution is the printed outcome of one resolve.
type Resolution struct {
	Target    string           `json:"target" yaml:"target"`
	Active    locale.Code      `json:"active" yaml:"active"`
	Direction locale.Direction `json:"direction" yaml:"direction"`
	Action    locale.Action    `json:"action" yaml:"action"`
	Status    int              `json:"status,omitempty" yaml:"status,omitempty"`
	Location  string           `json:"location,omitempty" yaml:"location,omitempty"`
	Persist   bool             `json:"persist" yaml:"persist"`
	Source    locale.Source    `json:"source" yaml:"source"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	op := logger.StartOperation("resolve")
	defer op.End(contextOrBackground(cmd.Context()))

	res, err := resolveTarget(cfg, args[0], resolveOpts)
	if err != nil {
		return err
	}

	return writeResolution(cmd.OutOrStdout(), res, resolveOpts.output)
}

// resolveTarget runs the same decision the server makes for raw, including
// the canonical default-locale redirect applied before resolution.
func resolveTarget(cfg *config.Config, raw string, opts resolveOptions) (*Resolution, error) {
	u, err := validation.ParseRequestTarget(raw)
	if err != nil {
		return nil, err
	}

	locales := cfg.Locales()

	var current locale.Code
	if opts.current != "" {
		code, ok := locales.Lookup(opts.current)
		if !ok {
			return nil, fmt.Errorf("--current %q is not a configured locale (configured: %s)", opts.current, codes(locales))
		}
		current = code
	}

	path := u.EscapedPath()

	if cfg.Site.CanonicalDefault {
		if rest, code, ok := locales.StripLocale(path); ok && code == locales.Default() {
			return &Resolution{
				Target:    raw,
				Active:    code,
				Direction: locales.DirectionOf(code),
				Action:    locale.Redirect,
				Status:    http.StatusMovedPermanently,
				Location:  locale.BuildURL(rest, locale.ParseQuery(u.RawQuery), u.EscapedFragment()),
				Persist:   true,
				Source:    locale.SourcePath,
			}, nil
		}
	}

	res := locale.Resolve(locales, locale.Request{
		Path:             path,
		Query:            locale.ParseQuery(u.RawQuery),
		Fragment:         u.EscapedFragment(),
		Stored:           opts.stored,
		BrowserLanguages: locale.ParseAcceptLanguage(opts.accept),
		Current:          current,
		Bypass:           cfg.Bypass()(path),
	})

	out := &Resolution{
		Target:   raw,
		Active:   res.Active,
		Action:   res.Action,
		Status:   res.StatusCode(),
		Location: res.Target,
		Persist:  res.Persist,
		Source:   res.Source,
	}
	if res.Active != "" {
		out.Direction = locales.DirectionOf(res.Active)
	}

	return out, nil
}

func writeResolution(w io.Writer, res *Resolution, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s (supported: yaml, json)", format)
	}
}

func codes(cfg *locale.Config) string {
	out := make([]string, 0, len(cfg.Codes()))
	for _, c := range cfg.Codes() {
		out = append(out, c.String())
	}

	return strings.Join(out, ", ")
}

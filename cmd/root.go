// Configuration precedence, highest first:
//
//  1. Command-line flags (--port, --log-level, etc.)
//  2. Environment variables (FOLIO_SERVER_PORT, FOLIO_SITE_DEFAULT, ...)
//  3. .env.local and .env in the working directory (never override real env)
//  4. The configuration file: --config, else FOLIO_CONFIG_FILE, else .folio.yml
//  5. Built-in defaults

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FOLIO"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Locale-aware server for a bilingual Arabic/English site",
	Long: `Folio serves a multilingual site under a prefix-except-default URL
strategy: the default locale lives at unprefixed paths, every other locale
under /<code>/. Visitors are routed by the locale in the URL, then by their
remembered preference, then by their browser languages.

Quick Start:
  folio serve                     Start the server
  folio resolve /about --accept en
                                  Show how a request would be routed
  folio validate                  Check configuration and message catalogs
  folio version                   Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .folio.yml, can also use FOLIO_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (pretty, text, json; default depends on environment)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for multiple config sources.
func initConfig() {
	for _, path := range config.LoadDotEnv(".") {
		fmt.Fprintln(os.Stderr, "Loaded environment from", path)
	}

	configureViper(viper.GetViper(), cfgFile)

	// A missing config file is fine; defaults and env apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}

// configureViper points v at the config file and enables FOLIO_ env
// overrides such as FOLIO_SERVER_PORT and FOLIO_SITE_CANONICAL_DEFAULT.
func configureViper(v *viper.Viper, explicit string) {
	if path := configFile(explicit); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".folio")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// configFile returns the config file named by the flag, else by FOLIO_CONFIG_FILE.
func configFile(explicit string) string {
	if explicit != "" {
		return explicit
	}

	return os.Getenv(EnvPrefix + "_CONFIG_FILE")
}

// loadConfig loads and validates the configuration from the global viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg *config.Config, out io.Writer) (*logging.FolioLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}

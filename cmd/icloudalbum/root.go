package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"icloudalbum/pkg/config"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool
	quiet      bool
	lenient    bool
	maxRetries int
	backoff    string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "icloudalbum",
	Short: "Fetch and download iCloud shared albums",
	Long: `icloudalbum reads public iCloud shared albums.

It resolves the service partition for an album token, follows the service's
host redirect, fetches the album's photo list and resolves download URLs for
every derivative. Albums can be inspected or downloaded at full quality.

An album can be given as a share URL, a bare token, or @alias for a token
saved with 'icloudalbum token add'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(os.Stderr, ui.Options{NoColor: noColor}).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.icloudalbum.yaml or ~/.config/icloudalbum/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&lenient, "lenient", false, "map unrecognised tokens to the fallback partition instead of failing")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", -1, "maximum number of retries per request (default from config)")
	rootCmd.PersistentFlags().StringVar(&backoff, "backoff", "", "backoff strategy (constant, linear, exponential, exponential_jitter)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per request timeout (default from config)")

	rootCmd.SetVersionTemplate(`icloudalbum {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags in the form config.MergeCommandLineFlags expects
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFormat != "" {
		flags["log-format"] = logFormat
	}
	if lenient {
		flags["lenient"] = true
	}
	if maxRetries >= 0 {
		flags["max-retries"] = maxRetries
	}
	if backoff != "" {
		flags["backoff"] = backoff
	}
	if timeout > 0 {
		flags["timeout"] = timeout
	}
	return flags
}

// setup loads the configuration with extra command flags merged over the
// global ones and initializes the global logger
func setup(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("icloudalbum starting")

	return cfg, nil
}

func newPrinter() *ui.Printer {
	return ui.NewPrinter(os.Stdout, ui.Options{Quiet: quiet, NoColor: noColor})
}

// Package cli provides the cobra command tree for socialrelay.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/config"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

var (
	// version is set at build time.
	version = "dev"

	cfgFile   string
	verbose   bool
	logFormat string

	// appConfig is loaded before every command runs.
	appConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "socialrelay",
	Short: "Multi-platform OAuth connection and publish service",
	Long: `socialrelay connects application users to their social accounts through
each platform's OAuth flow, stores the resulting tokens encrypted, and
publishes text, media and carousel posts on their behalf.

Configuration is read from ~/.socialrelay/config.toml (or --config) and
overridden by SOCIALRELAY_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.socialrelay/config.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json")
}

// Execute runs the root command.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if f := cmd.Flag("verbose"); f != nil && f.Changed {
		cfg.Log.Verbose = verbose
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	logger.SetFormat(cfg.Log.Format)
	logger.SetVerbose(cfg.Log.Verbose)
	appConfig = cfg
	return nil
}

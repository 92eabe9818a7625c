package main

import (
	"github.com/spf13/cobra"

	"gearshelf/internal/config"
	"gearshelf/internal/logging"
)

// rootOptions holds the global flags and the configuration they resolve to
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	dataDir    string
	jsonOutput bool

	cfg    *config.AppConfig
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gearshelf",
		Short: "Catalog the audio plugins installed on this machine",
		Long: `gearshelf scans the standard VST3, VST2 and Audio Unit locations, keeps a
persistent catalog of what it finds and merges the formats of each plugin
into a single entry.

Run "gearshelf scan" first, then list, search or export the catalog, or
"gearshelf serve" to expose it over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: ./config.yaml or ~/.config/gearshelf/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the catalog database")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newScanCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newSearchCmd(opts),
		newStatsCmd(opts),
		newHistoryCmd(opts),
		newCleanupCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// load resolves configuration from file, environment and changed flags, in
// increasing priority, and builds the logger
func (o *rootOptions) load(cmd *cobra.Command) error {
	loader := config.NewConfigLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loader.Set("logging.level", o.logLevel)
	}
	if flags.Changed("log-format") {
		loader.Set("logging.format", o.logFormat)
	}
	if flags.Changed("data-dir") {
		loader.Set("paths.data_dir", o.dataDir)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logging.NewFormattedLogger(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format, cmd.ErrOrStderr())

	if used := loader.ConfigFileUsed(); used != "" {
		o.logger.WithModule("config").Debug().Str("file", used).Msg("Loaded configuration")
	}
	return nil
}

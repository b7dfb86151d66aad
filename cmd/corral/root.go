package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "corral",
	Short:         "Run tasks on many hosts over SSH",
	Long:          "corral connects to every host in an inventory with bounded parallelism, runs an ordered task list on each, and reports every host as UP, FAILED or DOWN.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/corral/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

// loadConfig reads --config, or the default config file when it exists.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadDefault()
}

func setupLogger() (*logrus.Logger, error) {
	log, err := logging.New(logLevel, logFormat)
	if err != nil {
		return nil, &usageError{err: err}
	}
	return log, nil
}

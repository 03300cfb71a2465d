// Package cmd implements the opsboard command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"opsboard/internal/config"
	"opsboard/internal/logger"
)

var (
	// cfgFile is the --config flag.
	cfgFile string

	// verbose forces debug logging regardless of config.
	verbose bool

	rootCmd = &cobra.Command{
		Use:           "opsboard",
		Short:         "Logistics dashboard aggregation over spreadsheet CSV feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(reportCommand())
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(detectCommand())
	rootCmd.AddCommand(validateCommand())
}

// Execute runs the command line. Callers print the error and exit non-zero.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// setup loads configuration and builds the logger every subcommand shares.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(config.Path(cfgFile))
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d feeds, %d reports\n",
				config.Path(cfgFile), len(cfg.Feeds), len(cfg.Reports))
			return nil
		},
	}
}

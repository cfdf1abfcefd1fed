package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"crossmesh/pkg/config"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crossmesh",
		Short: "Distributed cross-mesh field evaluation",
		Long: "crossmesh samples a field defined on a distributed source mesh at the points\n" +
			"or cell centres of a distributed target mesh, on in-process ranks or on\n" +
			"rank processes relayed by a websocket hub.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "cmfe.yaml", "configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newInitConfigCmd(), newRunCmd(), newHubCmd(), newRankCmd())
	return root
}

func newInitConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(out); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "cmfe.yaml", "file to write")
	return cmd
}

// loadConfig reads and validates the configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Output.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", configPath, err)
	}

	level := logrus.WarnLevel
	if cfg.Output.Verbose {
		level = logrus.InfoLevel
	}
	if cfg.Output.LogLevel != "" {
		if level, err = logrus.ParseLevel(cfg.Output.LogLevel); err != nil {
			return nil, err
		}
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return cfg, nil
}

// Package cli implements the talon command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talonchat/talon/internal/config"
	"github.com/talonchat/talon/internal/db"
	"github.com/talonchat/talon/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	loadedConfig *config.Config
)

// Execute runs the CLI.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "talon",
		Short:         "Track unread conversations on your chat server",
		Long:          "talon follows a chat server's event queue and keeps per-conversation unread counts, recent private conversations, and fetch bookkeeping.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newLoginCmd(),
		newAccountsCmd(),
		newUnreadsCmd(),
		newRecentsCmd(),
		newWatchCmd(),
	)

	return cmd
}

func initialize() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	loadedConfig = cfg

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return loadedConfig
}

func openDatabase(ctx context.Context) (*db.DB, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return db.Open(ctx, cfg.Database.Path)
}

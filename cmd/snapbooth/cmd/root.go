// Package cmd implements the CLI commands for snapbooth.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapbooth/snapbooth/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "snapbooth",
	Short:   "Unattended event photo booth daemon",
	Version: version.Short(),
	Long: `snapbooth is a daemon for unattended event photo booths.

It acquires frames from the first working camera in a configured candidate
list, composes captures into declarative templates, and writes finished
photos with collision-free names. A small HTTP API lets kiosk frontends
trigger captures, switch templates and watch a live preview.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Flags are not bound to viper here: config loading builds its own
	// viper instance in internal/config, and the serve command overrides
	// loaded values only for flags the user explicitly set. This keeps the
	// priority: CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/snapbooth, $HOME/.snapbooth)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

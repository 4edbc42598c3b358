package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canvas-sync/canvas-sync/internal/config"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	debugLog   bool

	// settings is loaded once before any subcommand runs
	settings *config.Settings
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "canvas-sync",
	Short: "Resumable concurrent file downloader",
	Long: `canvas-sync downloads files over HTTP with a pool of workers.

Interrupted transfers keep a staging file next to the destination and resume
from it on the next run. Destinations that are already up to date are skipped.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeGlobalState()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.CloseDebug()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default $XDG_CONFIG_HOME/canvas-sync/settings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write debug logs to stderr")
	rootCmd.SetVersionTemplate("canvas-sync version {{.Version}}\n")
}

// initializeGlobalState prepares the app directories, logging and settings
func initializeGlobalState() error {
	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to ensure config dirs: %w", err)
	}
	if err := utils.ConfigureDebug(config.GetLogsDir(), debugLog); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	s, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	settings = s
	utils.Debug("Settings loaded: workers=%d suffix=%s", s.General.Workers, s.General.TmpSuffix)
	return nil
}

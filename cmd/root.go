package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "opsdesk",
	Short: "Self-hosted helpdesk with realtime WebSocket updates",
	Long: `opsdesk is a small self-hosted helpdesk backend: tickets, todo boards
and equipment inventory with live fan-out over WebSocket, so every open
client sees changes the moment they happen.

Get started:
  opsdesk setup      Interactive setup wizard
  opsdesk seed       Create initial accounts and inventory
  opsdesk doctor     Verify config, database, and channels
  opsdesk serve      Start the HTTP + WebSocket server
  opsdesk watch      Follow the live event stream in the terminal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.opsdesk/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		setupCmd,
		serveCmd,
		seedCmd,
		watchCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}

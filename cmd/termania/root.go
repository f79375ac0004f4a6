package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyvez/termania/internal/config"
)

// Version is injected by the linker at release build time.
var Version = "dev"

var (
	// Global flags.
	flagConfig string
	flagSocket string
)

var rootCmd = &cobra.Command{
	Use:   "termania",
	Short: "multi-pane terminal control core",
	Long: `termania is the control core of a multi-pane terminal application.

The run command hosts the controller headless: it polls pane plugins,
serves the Text Tap control socket, and drives the LLM assistant. The tap
subcommands talk to a running instance over that socket.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "socket", envOrDefault("TERMANIA_TAP_SOCKET", config.DefaultTapSocket), "text tap socket path")
	rootCmd.AddCommand(versionCmd)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig resolves the --config flag, falling back to defaults when no
// file is given.
func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Defaults(), nil
	}
	return config.Load(flagConfig)
}

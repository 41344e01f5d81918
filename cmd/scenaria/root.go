package main

import (
	"fmt"
	"os"

	"github.com/aretw0/scenaria/internal/cli"
	"github.com/aretw0/scenaria/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scenaria",
	Short: "Scenaria runs phase-graph conversation scenarios",
	Long: `Scenaria authors, validates and plays conversation scenarios: graphs of phases
joined by success and failure transitions, where an evaluator judges every turn.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Project file (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringP("dir", "d", "", "Directory containing the scenario library (overrides the project file)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level debug")
}

// loadConfig resolves the project file and the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dir, _ := cmd.Flags().GetString("dir")
	cfg, err := cli.LoadConfig(path, dir)
	if err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// loadApp builds the application for commands that need the library or sessions.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.NewApp(cfg, cli.NewLogger(cfg, debug))
}

package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gurud",
	Short: "gurud - automation orchestration daemon",
	Long: `gurud schedules guru automations, routes inbound messages to the right
guru, and executes tasks through a persistent worker subprocess.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

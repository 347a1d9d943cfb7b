package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/floguru/gurucore/internal/config"
)

const defaultConfigPath = "config.toml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// configCheckCmd represents the config check command
var configCheckCmd = &cobra.Command{
	Use:   "check [config-file]",
	Short: "Validate the configuration file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := defaultConfigPath
		if len(args) > 0 {
			configPath = args[0]
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		if errs := cfg.Validate(); len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "configuration is invalid (%d errors):\n", len(errs))
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  - %v\n", e)
			}
			os.Exit(1)
		}

		fmt.Printf("%s: configuration is valid\n", configPath)
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}

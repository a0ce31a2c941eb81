package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripmates/accord/internal/config"
)

const programName = "accord"

var (
	version    = "0.1.0-dev"
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Adaptive itinerary consensus and resolution engine",
		RunE:  runServe,
	}

	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error.
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	serveRun(cfg)
	return nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine",
		RunE:  runServe,
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", programName, version)
		},
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fetchkit/fetchd/internal/output"
)

var (
	debug        bool
	settingsPath string
)

var FetchdVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "fetchd",
	Short:   "fetchd is an asynchronous media download service",
	Version: FetchdVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		output.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "fetchd.yaml", "Path to the settings file")
}

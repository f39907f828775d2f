// Package cmd holds the propscout command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const appName = "propscout"

// AppFlags holds the persistent flags shared by every subcommand.
type AppFlags struct {
	Verbose bool
	EnvFile string
}

var Flags AppFlags

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Scrape UK property portals and serve the results",
	Long: `propscout searches Rightmove and Zoopla through a headless browser,
caches the listings it finds and serves them over a small JSON API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&Flags.EnvFile, "env-file", "", "load settings from this .env file")

	rootCmd.AddCommand(serveCmd, searchCmd, detailsCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

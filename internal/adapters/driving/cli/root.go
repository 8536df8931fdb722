// Package cli implements the command-line surface of the newsreel
// engine.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// version is set by Execute from the main package.
var version = "dev"

var (
	flagVerbose bool
	flagConfig  string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "newsreel",
	Short: "Article synchronisation and rich-content cache engine",
	Long: `Newsreel keeps a local article store in sync with a news API and
serves formatted article content from a persistent cache.

Run "newsreel daemon" to start the background scheduler, or "newsreel
sync" for a one-off cycle.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default ~/.newsreel/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.newsreel/data)")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// Package cli wires configuration, directories, the price API and the engine
// into the marketscan command line.
package cli

import (
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	verbose     bool
	source      string
	metricsAddr string
}

// NewRootCommand creates the root command for the CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "marketscan",
		Short: "Collect EVE market prices and find trading opportunities",
		Long: `marketscan collects order book prices for every known item at one or more
trade hubs, keeps a bounded history of datapoints per item, and reports
cross-hub arbitrage and same-station margin opportunities.

Examples:
  marketscan collect --hub jita --hub amarr
  marketscan margin --hub jita --limit 25
  marketscan arbitrage --hub jita --against amarr,dodixie
  marketscan lookup rifter
  marketscan runs --limit 10`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default ./marketscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.source, "source", sourceAggregates,
		"Price endpoint: aggregates (full order book stats) or quotes (one price per side)")
	rootCmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "",
		"Serve Prometheus fetch metrics on this address while running (e.g. :9090)")

	rootCmd.AddCommand(newCollectCommand(opts))
	rootCmd.AddCommand(newMarginCommand(opts))
	rootCmd.AddCommand(newArbitrageCommand(opts))
	rootCmd.AddCommand(newLookupCommand(opts))
	rootCmd.AddCommand(newRunsCommand(opts))

	return rootCmd
}

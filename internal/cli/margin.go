package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"eve-marketscan/internal/engine"
	"eve-marketscan/internal/logger"
)

func newMarginCommand(opts *rootOptions) *cobra.Command {
	var hub string
	var limit int

	cmd := &cobra.Command{
		Use:   "margin",
		Short: "Rank items at one hub by fee-adjusted buy/sell margin",
		Long: `Collect prices at a hub and rank every item by the ratio of its best ask
to its best bid after brokers fees and sales tax. Items with fewer than 50
units on sale, or fewer than 5 orders on either side, score 0.

Examples:
  marketscan margin --hub jita
  marketscan margin --hub amarr --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			loc, err := a.location(hub)
			if err != nil {
				return err
			}

			c := a.scanner.Collect(cmd.Context(), loc, progress)
			a.persist(c)

			ranked := c.Market.Margins(a.fees())
			shown := ranked[:min(len(ranked), engine.EffectiveMaxResults(limit, engine.DefaultMaxResults))]

			if runID := a.recordRun("margin", c); runID != "" {
				if err := a.db.InsertMarginResults(runID, shown); err != nil {
					logger.Warn("DB", err.Error())
				}
			}

			if len(ranked) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No valid price data collected for %s.\n", loc)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTop %d of %d items at %s (brokers fee %.1f%%, sales tax %.1f%%):\n\n",
				len(shown), len(ranked), loc, a.cfg.BrokersFee*100, a.cfg.SalesTax*100)
			printMargins(cmd.OutOrStdout(), a.types, shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&hub, "hub", "jita", "Hub name, location name or location id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items to display")
	return cmd
}

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"eve-marketscan/internal/engine"
	"eve-marketscan/internal/logger"
)

func newArbitrageCommand(opts *rootOptions) *cobra.Command {
	var hub string
	var against []string
	var limit int

	cmd := &cobra.Command{
		Use:   "arbitrage",
		Short: "Find items to haul between hubs",
		Long: `Collect prices at a home hub and at every other hub, then report items
whose best bid at one hub beats the best ask at the other by at least the
configured anomaly factor, in both directions.

Without --against, the home hub is compared with every other configured hub.

Examples:
  marketscan arbitrage --hub jita
  marketscan arbitrage --hub jita --against amarr,dodixie --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			self, err := a.location(hub)
			if err != nil {
				return err
			}
			others, err := a.otherLocations(self, against)
			if err != nil {
				return err
			}
			if len(others) == 0 {
				return fmt.Errorf("no locations to compare %s against", self)
			}

			records, cols := a.scanner.Sweep(cmd.Context(), self, others, a.cfg.AnomalyFactor, progress)

			persisted := make(map[int64]bool)
			var homeRun string
			for _, c := range cols {
				id := c.Market.Location().ID
				if persisted[id] {
					continue
				}
				persisted[id] = true
				a.persist(c)
				runID := a.recordRun("arbitrage", c)
				if id == self.ID {
					homeRun = runID
				}
			}

			SortArbitrage(records)
			if homeRun != "" {
				if err := a.db.InsertArbitrageResults(homeRun, records); err != nil {
					logger.Warn("DB", err.Error())
				}
			}

			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No opportunities above %.0f%% between %s and %s.\n",
					a.cfg.AnomalyFactor*100, self, joinLocations(others))
				return nil
			}
			shown := records[:min(len(records), engine.EffectiveMaxResults(limit, engine.DefaultMaxResults))]
			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d opportunities above %.0f%% (showing %d):\n\n",
				len(records), a.cfg.AnomalyFactor*100, len(shown))
			printArbitrage(cmd.OutOrStdout(), a.types, shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&hub, "hub", "jita", "Home hub name, location name or location id")
	cmd.Flags().StringSliceVar(&against, "against", nil, "Hubs to compare against (default: every other configured hub)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum opportunities to display")
	return cmd
}

// otherLocations resolves --against, or every configured hub except self.
func (a *app) otherLocations(self engine.Location, names []string) ([]engine.Location, error) {
	if len(names) == 0 {
		for hub := range a.cfg.Hubs {
			names = append(names, hub)
		}
		sort.Strings(names)
	}
	seen := map[int64]bool{self.ID: true}
	var out []engine.Location
	for _, n := range names {
		loc, err := a.location(n)
		if err != nil {
			return nil, err
		}
		if seen[loc.ID] {
			continue
		}
		seen[loc.ID] = true
		out = append(out, loc)
	}
	return out, nil
}

// SortArbitrage orders records by margin descending, then type ID and buy location.
func SortArbitrage(records []engine.ArbitrageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		mi, mj := records[i].MarginPercent(), records[j].MarginPercent()
		if mi != mj {
			return mi > mj
		}
		if records[i].TypeID != records[j].TypeID {
			return records[i].TypeID < records[j].TypeID
		}
		return records[i].BuyLocation < records[j].BuyLocation
	})
}

func joinLocations(locs []engine.Location) string {
	names := make([]string, len(locs))
	for i, l := range locs {
		names[i] = l.String()
	}
	return strings.Join(names, ", ")
}

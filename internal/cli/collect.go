package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eve-marketscan/internal/engine"
)

func newCollectCommand(opts *rootOptions) *cobra.Command {
	var hubs []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect current prices and append a datapoint per item",
		Long: `Collect current prices for every known item at each hub, keep the valid
snapshots, append them to the hub's datapoint history and save it.

With load_items_from_datapoints set, prices are rebuilt from the saved
history instead of fetched; if the history cannot be loaded the command
falls back to a live fetch.

Examples:
  marketscan collect
  marketscan collect --hub jita --hub amarr --hub 60011866`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			locs := make([]engine.Location, 0, len(hubs))
			seen := make(map[int64]bool)
			for _, h := range hubs {
				loc, err := a.location(h)
				if err != nil {
					return err
				}
				if !seen[loc.ID] {
					seen[loc.ID] = true
					locs = append(locs, loc)
				}
			}

			cols := make([]*engine.Collection, len(locs))
			var g errgroup.Group
			for i, loc := range locs {
				g.Go(func() error {
					cols[i] = a.scanner.Collect(cmd.Context(), loc, progress)
					return nil
				})
			}
			g.Wait()

			for _, c := range cols {
				a.persist(c)
				a.recordRun("collect", c)
			}
			printCollections(cmd.OutOrStdout(), cols)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hubs, "hub", []string{"jita"}, "Hub name, location name or location id (repeatable)")
	return cmd
}

func collectionOrigin(c *engine.Collection) string {
	if c.FromDatapoints {
		return "datapoints"
	}
	return "live"
}

func collectionDuration(c *engine.Collection) string {
	if c.FromDatapoints {
		return "-"
	}
	return c.Fetch.Duration.Round(time.Millisecond).String()
}

func collectionRequests(c *engine.Collection) string {
	if c.FromDatapoints {
		return "-"
	}
	return fmt.Sprintf("%d/%d", c.Fetch.Chunks-c.Fetch.FailedChunks, c.Fetch.Chunks)
}

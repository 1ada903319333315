package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eve-marketscan/internal/db"
	"eve-marketscan/internal/sde"
)

func newRunsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	var show string
	var clearDays int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived collection runs and their results",
		Long: `List archived collection runs, newest first, show the stored results of
one run, or delete old runs.

Examples:
  marketscan runs --limit 10
  marketscan runs --show 3f2a9c1e-...
  marketscan runs --clear-older-than 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.DatabasePath == "" {
				return errors.New("run archive disabled (database_path is empty)")
			}
			database, err := db.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			switch {
			case clearDays > 0:
				n, err := database.ClearRuns(clearDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d runs older than %d days.\n", n, clearDays)
				return nil

			case show != "":
				run := database.GetRunByID(show)
				if run == nil {
					return fmt.Errorf("run %s not found", show)
				}
				printRuns(out, []db.Run{*run})

				types, err := sde.LoadTypes(cfg.TypeIDsPath)
				if err != nil {
					types = sde.NewTypes(nil)
				}
				if recs := database.GetArbitrageResults(run.ID); len(recs) > 0 {
					fmt.Fprintf(out, "\nArbitrage (%d):\n\n", len(recs))
					printArbitrage(out, types, recs)
				}
				if margins := database.GetMarginResults(run.ID); len(margins) > 0 {
					fmt.Fprintf(out, "\nMargins (%d):\n\n", len(margins))
					printStoredMargins(out, types, margins)
				}
				return nil

			default:
				runs := database.GetRuns(limit)
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded.")
					return nil
				}
				printRuns(out, runs)
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&show, "show", "", "Show the stored results of this run id")
	cmd.Flags().IntVar(&clearDays, "clear-older-than", 0, "Delete runs older than this many days")
	return cmd
}

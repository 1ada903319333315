package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"eve-marketscan/internal/sde"
)

func newLookupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup NAME...",
		Short: "Find item type IDs by (partial) name",
		Long: `Print every item whose name contains the given text, case-insensitively,
ordered by type ID.

Examples:
  marketscan lookup rifter
  marketscan lookup fleet issue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			types, err := sde.LoadTypes(cfg.TypeIDsPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			matches := types.Search(strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			for _, id := range matches {
				fmt.Fprintf(out, "%5d : %s\n", id, types.Name(id))
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/session"
)

func newSeedCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed [collection...]",
		Short: "Store the bundled defaults",
		Long: `Seed writes the bundled default profile and collections to the document
store, giving each item an order key equal to its bundle position. Content
that is already stored is skipped unless --force is given, in which case the
stored items of a seeded collection are replaced. Naming collections seeds
only those and leaves the profile alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			report, err := ws.editor.Seed(cmd.Context(), session.SeedOptions{
				Force:       force,
				Collections: args,
			})
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			if a.flags.jsonMode {
				return writeJSON(out(cmd), report)
			}
			if report.Profile {
				fmt.Fprintln(out(cmd), "profile: seeded")
			}
			names := make([]string, 0, len(report.Inserted))
			for name := range report.Inserted {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out(cmd), "%s: %d items\n", name, report.Inserted[name])
			}
			for _, name := range report.Skipped {
				fmt.Fprintf(out(cmd), "%s: skipped (already stored)\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace content that is already stored")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize showcase storage",
		Long:  "Create the configuration directory with a default config.yaml, then initialize the document store.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(false)
			if err != nil {
				return err
			}
			if err := ws.Close(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}

			if a.flags.jsonMode {
				return writeJSON(out(cmd), map[string]string{"config": a.configDir, "data": ws.dataDir})
			}
			fmt.Fprintln(out(cmd), "Showcase initialized successfully")
			fmt.Fprintln(out(cmd), "  config:", a.configDir)
			fmt.Fprintln(out(cmd), "  data:  ", ws.dataDir)
			return nil
		},
	}
}

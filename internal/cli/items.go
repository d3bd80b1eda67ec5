package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/session"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "List the rendered items of a collection",
		Long: `List prints the items of a collection in rendered order: the stored items
sorted by their order key, or the bundled defaults while none are stored.

Example:
  showcase list projects
  showcase list crew --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			view, err := ws.content.AwaitCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out(cmd), toCollectionJSON(view))
			}
			return writeCollection(out(cmd), view)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection> <key=value>...",
		Short: "Add an item at the end of a collection",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := commitDraft(cmd, ws, session.NewItem(args[0]), fields)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out(cmd), map[string]string{"collection": args[0], "id": id})
			}
			fmt.Fprintln(out(cmd), id)
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <id> <key=value>...",
		Short: "Merge fields into an item",
		Long: `Update merges the given fields into an item. Updating an item rendered from
the bundled defaults stores it as a new item with every default field.`,
		Args: minArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := commitDraft(cmd, ws, session.Item(args[0], args[1]), fields)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out(cmd), map[string]string{"collection": args[0], "id": id})
			}
			fmt.Fprintf(out(cmd), "Updated %s/%s\n", args[0], id)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Remove an item from a collection",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.editor.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out(cmd), map[string]string{"deleted": args[0] + "/" + args[1]})
			}
			fmt.Fprintf(out(cmd), "Deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/order"
)

func newSwapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "swap <collection> <a> <b>",
		Short: "Exchange the items at two rendered positions",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			j, err := parseIndex(args[2])
			if err != nil {
				return err
			}
			return a.reorder(cmd, args[0], func(ws *workspace) error {
				return ws.editor.Swap(cmd.Context(), args[0], i, j)
			})
		},
	}
}

// newMoveCmd builds move-up or move-down. Moving the first item up or the
// last item down leaves the collection unchanged.
func newMoveCmd(a *app, name string) *cobra.Command {
	short := "Move an item one position toward the front"
	if name == "move-down" {
		short = "Move an item one position toward the end"
	}
	return &cobra.Command{
		Use:   name + " <collection> <position>",
		Short: short,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return a.reorder(cmd, args[0], func(ws *workspace) error {
				if name == "move-down" {
					return ws.editor.MoveDown(cmd.Context(), args[0], index)
				}
				return ws.editor.MoveUp(cmd.Context(), args[0], index)
			})
		},
	}
}

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <collection>",
		Short: "Rewrite order keys to 0..n-1 in rendered order",
		Long: `Reindex repairs a collection whose order keys are missing, duplicated or
left inconsistent by an interrupted reorder. The rendered order is kept.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reorder(cmd, args[0], func(ws *workspace) error {
				return ws.editor.Reindex(cmd.Context(), args[0])
			})
		},
	}
}

// reorder runs op against an attached workspace and prints the resulting
// rendered collection.
func (a *app) reorder(cmd *cobra.Command, collection string, op func(*workspace) error) error {
	ws, err := a.open(false)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := op(ws); err != nil {
		if order.IsPartial(err) && cmd.Name() != "reindex" {
			fmt.Fprintf(cmd.ErrOrStderr(), "order keys in %s are inconsistent; run: showcase reindex %s\n", collection, collection)
		}
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	ws.backend.Flush()

	view, err := ws.content.AwaitCollection(cmd.Context(), collection)
	if err != nil {
		return err
	}
	if a.flags.jsonMode {
		return writeJSON(out(cmd), toCollectionJSON(view))
	}
	return writeCollection(out(cmd), view)
}

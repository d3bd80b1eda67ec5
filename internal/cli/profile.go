package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/session"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the site profile",
	}
	cmd.AddCommand(newProfileGetCmd(a), newProfileSetCmd(a))
	return cmd
}

func newProfileGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print the rendered profile, or one of its fields",
		Args:  wrapArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			view, err := ws.content.AwaitProfile(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				value, ok := view.Profile.Fields[args[0]]
				if !ok {
					return fmt.Errorf("%w: profile field %q", types.ErrNotFound, args[0])
				}
				if a.flags.jsonMode {
					return writeJSON(out(cmd), value)
				}
				fmt.Fprintln(out(cmd), formatValue(value))
				return nil
			}

			if a.flags.jsonMode {
				return writeJSON(out(cmd), toProfileJSON(view))
			}
			return writeProfile(out(cmd), view)
		},
	}
}

func newProfileSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Merge fields into the stored profile",
		Long: `Set merges the given fields into the stored profile. Values that parse as
JSON are stored decoded, anything else as a string. While the profile is
rendered from defaults, the first save stores every default field too.

Example:
  showcase profile set siteTitle="My Portfolio"
  showcase profile set 'roles=["designer","photographer"]'`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args)
			if err != nil {
				return err
			}

			ws, err := a.open(false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if _, err := commitDraft(cmd, ws, session.Profile(), fields); err != nil {
				return err
			}

			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if a.flags.jsonMode {
				return writeJSON(out(cmd), map[string]any{"updated": keys})
			}
			fmt.Fprintf(out(cmd), "Updated profile: %s\n", strings.Join(keys, ", "))
			return nil
		},
	}
}

// commitDraft opens a draft of entity, applies fields and commits it,
// returning the committed identifier.
func commitDraft(cmd *cobra.Command, ws *workspace, entity session.Entity, fields types.Document) (string, error) {
	d, err := ws.editor.Open(cmd.Context(), entity)
	if err != nil {
		return "", err
	}
	for k, v := range fields {
		if err := d.Set(k, v); err != nil {
			_ = d.Discard()
			return "", fmt.Errorf("set %q: %w", k, err)
		}
	}
	return d.Commit(cmd.Context())
}

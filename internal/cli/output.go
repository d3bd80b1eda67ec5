package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/showcase/internal/content"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// labelFields are tried in order to pick the column shown for an item.
var labelFields = []string{"title", "name", "organization", "role", "caption"}

// itemJSON is the JSON rendering of one item.
type itemJSON struct {
	ID     string         `json:"id"`
	Order  *int           `json:"order,omitempty"`
	Fields types.Document `json:"fields"`
}

// collectionJSON is the JSON rendering of a collection view.
type collectionJSON struct {
	Collection   string     `json:"collection"`
	FromDefaults bool       `json:"fromDefaults"`
	Error        string     `json:"error,omitempty"`
	Items        []itemJSON `json:"items"`
}

// profileJSON is the JSON rendering of a profile view.
type profileJSON struct {
	FromDefaults bool           `json:"fromDefaults"`
	Error        string         `json:"error,omitempty"`
	Fields       types.Document `json:"fields"`
}

func toCollectionJSON(v content.CollectionView) collectionJSON {
	c := collectionJSON{
		Collection:   v.Name,
		FromDefaults: v.FromDefaults,
		Items:        make([]itemJSON, 0, len(v.Items)),
	}
	if v.Err != nil {
		c.Error = v.Err.Error()
	}
	for _, it := range v.Items {
		c.Items = append(c.Items, itemJSON{ID: it.ID, Order: it.Order, Fields: it.Fields})
	}
	return c
}

func toProfileJSON(v content.ProfileView) profileJSON {
	p := profileJSON{FromDefaults: v.FromDefaults, Fields: v.Profile.Fields}
	if p.Fields == nil {
		p.Fields = types.Document{}
	}
	if v.Err != nil {
		p.Error = v.Err.Error()
	}
	return p
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func source(fromDefaults bool) string {
	if fromDefaults {
		return "defaults"
	}
	return "remote"
}

// writeCollection prints the items of v as a table in rendered order.
func writeCollection(w io.Writer, v content.CollectionView) error {
	fmt.Fprintf(w, "%s (%s, %d items)\n", v.Name, source(v.FromDefaults), len(v.Items))
	if v.Err != nil {
		fmt.Fprintf(w, "warning: %s\n", v.Err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tORDER\tLABEL")
	for i, it := range v.Items {
		order := "-"
		if it.Order != nil {
			order = strconv.Itoa(*it.Order)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, it.ID, order, label(it))
	}
	return tw.Flush()
}

// writeProfile prints the profile fields sorted by key.
func writeProfile(w io.Writer, v content.ProfileView) error {
	fmt.Fprintf(w, "profile (%s)\n", source(v.FromDefaults))
	if v.Err != nil {
		fmt.Fprintf(w, "warning: %s\n", v.Err)
	}
	keys := make([]string, 0, len(v.Profile.Fields))
	for k := range v.Profile.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, formatValue(v.Profile.Fields[k]))
	}
	return nil
}

func label(it types.Item) string {
	for _, f := range labelFields {
		if s := it.String(f); s != "" {
			return s
		}
	}
	return ""
}

// formatValue renders strings as-is and everything else as compact JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// parseAssignments turns key=value arguments into a document. A value that
// parses as JSON is stored decoded, anything else as a raw string.
func parseAssignments(args []string) (types.Document, error) {
	doc := make(types.Document, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid assignment %q (expected key=value)", errUsage, arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		doc[key] = parsed
	}
	return doc, nil
}

// parseIndex parses a rendered position argument.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid position %q", errUsage, arg)
	}
	return n, nil
}

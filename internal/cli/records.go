package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/plist"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newShowCmd(a *app) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "show <list>",
		Short: "Print the records of a list in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			records := list.Records()
			if a.jsonMode {
				out := map[string]any{
					"name":    list.Name(),
					"records": plainRecords(records),
				}
				if at := list.LatestRefresh(); !at.IsZero() {
					out["latest_refresh"] = at.Format(time.RFC3339)
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if at := list.LatestRefresh(); !at.IsZero() {
				fmt.Fprintf(w, "# %s refreshed %s\n", list.Name(), at.Format(time.RFC3339))
			}
			return a.printRecords(w, records, list.UniqueKey())
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "get <list> <id>",
		Short: "Print the record with the given unique key value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			r, ok := list.RecordFor(args[1])
			if !ok {
				return userError("%w: %q in %s", types.ErrNotFound, args[1], args[0])
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), plainRecords([]types.Record{r})[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatRecord(r, list.UniqueKey()))
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var kind string
	cmd := &cobra.Command{
		Use:   "set <list> <id> <field> <value>",
		Short: "Replace one field of a record and save the list",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id, field, raw := args[0], args[1], args[2], args[3]
			value, err := parseValue(kind, raw)
			if err != nil {
				return userError("%s", err)
			}

			list, detach, err := a.openList(name, f)
			if err != nil {
				return err
			}
			defer detach()

			index := list.IndexOf(id)
			if index == plist.NotFound {
				return userError("%w: %q in %s", types.ErrNotFound, id, name)
			}
			if field == list.UniqueKey() {
				if value.IsNull() {
					return userError("%s must not be null", field)
				}
				if other := list.IndexOf(value.Key()); other != plist.NotFound && other != index {
					return userError("%s %q already used by another record", field, value.Key())
				}
			}

			list.ReplaceField(index, field, value)
			if err := list.Synchronize(); err != nil {
				return sysError("save %s: %s", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s on %s\n", id, field, name)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&kind, "type", "auto", "value type: auto, string, number, bool, date, json")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var (
		id   string
		kind string
	)
	cmd := &cobra.Command{
		Use:   "add <list> field=value...",
		Short: "Append a record to a list and save it",
		Long: "Append a record built from field=value pairs. When neither --id nor a pair\n" +
			"sets the unique key, a time-ordered UUID is generated.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			record := types.Record{}
			for _, pair := range args[1:] {
				field, raw, ok := strings.Cut(pair, "=")
				if !ok || field == "" {
					return userError("invalid field %q (want field=value)", pair)
				}
				value, err := parseValue(kind, raw)
				if err != nil {
					return userError("%s: %s", field, err)
				}
				record[field] = value
			}

			list, detach, err := a.openList(name, f)
			if err != nil {
				return err
			}
			defer detach()

			uniqueKey := list.UniqueKey()
			if id != "" {
				record[uniqueKey] = types.String(id)
			}
			if _, ok := record.Identity(uniqueKey); !ok {
				record[uniqueKey] = types.String(newID())
			}

			if err := list.Append(record); err != nil {
				return userError("add to %s: %s", name, err)
			}
			if err := list.Synchronize(); err != nil {
				return sysError("save %s: %s", name, err)
			}

			added, _ := record.Identity(uniqueKey)
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), plainRecords([]types.Record{record})[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), added)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&id, "id", "", "unique key value (default: generated)")
	cmd.Flags().StringVar(&kind, "type", "auto", "value type for every field: auto, string, number, bool, date, json")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "remove <list> <id>",
		Short: "Remove a record from a list and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			list, detach, err := a.openList(name, f)
			if err != nil {
				return err
			}
			defer detach()

			index := list.IndexOf(id)
			if index == plist.NotFound {
				return userError("%w: %q in %s", types.ErrNotFound, id, name)
			}
			list.RemoveAt(index)
			if err := list.Synchronize(); err != nil {
				return sysError("save %s: %s", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", id, name)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// newID returns a time-ordered UUID v7, falling back to a random v4.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

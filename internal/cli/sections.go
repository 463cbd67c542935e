package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/sections"
)

func newSectionsCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var from string
	cmd := &cobra.Command{
		Use:   "sections <list>",
		Short: "Print a list grouped into sections",
		Long: "Group the records of a list by --section-key. With --from, update the grouping\n" +
			"with a replacement list and print the rows and sections a table would insert,\n" +
			"delete and reload. The stored list is not modified.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			lc := list.Config()
			src, err := sections.New(lc.UniqueKey, lc.SectionKey, lc.UpdatableKeys, list.Records()...)
			if err != nil {
				return sysError("group %s: %s", list.Name(), err)
			}

			if from == "" {
				return a.printSections(cmd.OutOrStdout(), src)
			}

			proposed, err := fetchSource(cmd.Context(), list, from)
			if err != nil {
				return err
			}
			changes, err := src.Update(proposed)
			if err != nil {
				return userError("update %s: %s", list.Name(), err)
			}
			return a.printTableChanges(cmd.OutOrStdout(), changes)
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.sectionKey, "section-key", "", "field naming each record's section (default: from config)")
	cmd.Flags().StringVar(&from, "from", "", "file or URL of a replacement list")
	return cmd
}

func (a *app) printSections(w io.Writer, src *sections.Source) error {
	names := src.SectionNames()
	if a.jsonMode {
		out := make([]map[string]any, len(names))
		for i, n := range names {
			out[i] = map[string]any{
				"section": n,
				"records": plainRecords(src.ItemsForSectionIndex(i)),
			}
		}
		return writeJSON(w, out)
	}
	for i, n := range names {
		fmt.Fprintf(w, "[%d] %s\n", i, n)
		for row, r := range src.ItemsForSectionIndex(i) {
			id, _ := r.Identity(src.UniqueKey())
			fmt.Fprintf(w, "  %d.%d\t%s\n", i, row, id)
		}
	}
	return nil
}

func (a *app) printTableChanges(w io.Writer, tc sections.TableChanges) error {
	if a.jsonMode {
		return writeJSON(w, map[string]any{
			"deleted_sections":  emptyInts(tc.DeletedSections),
			"inserted_sections": emptyInts(tc.InsertedSections),
			"deleted_rows":      formatPaths(tc.DeletedRows),
			"inserted_rows":     formatPaths(tc.InsertedRows),
			"reloaded_rows":     formatPaths(tc.ReloadedRows),
		})
	}
	if tc.Empty() {
		fmt.Fprintln(w, "no changes")
		return nil
	}
	for _, s := range tc.DeletedSections {
		fmt.Fprintf(w, "delete section %d\n", s)
	}
	for _, s := range tc.InsertedSections {
		fmt.Fprintf(w, "insert section %d\n", s)
	}
	for _, p := range tc.DeletedRows {
		fmt.Fprintf(w, "delete row %d.%d\n", p.Section, p.Row)
	}
	for _, p := range tc.InsertedRows {
		fmt.Fprintf(w, "insert row %d.%d\n", p.Section, p.Row)
	}
	for _, p := range tc.ReloadedRows {
		fmt.Fprintf(w, "reload row %d.%d\n", p.Section, p.Row)
	}
	return nil
}

func emptyInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

func formatPaths(paths []sections.IndexPath) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = fmt.Sprintf("%d.%d", p.Section, p.Row)
	}
	return out
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/internal/codec"
	"github.com/mesh-intelligence/shelf/pkg/plist"
	"github.com/mesh-intelligence/shelf/pkg/remote"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newListsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Print configured and stored list names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configured, err := configuredListNames(a.config)
			if err != nil {
				return userError("%s", err)
			}
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			stored, err := backend.Names()
			if err != nil {
				return sysError("list names: %s", err)
			}

			seen := map[string]bool{}
			var names []string
			for _, n := range append(configured, stored...) {
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
			if a.jsonMode {
				if names == nil {
					names = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// fetchSource decodes a local file or URL into records using the list's
// date fields.
func fetchSource(ctx context.Context, list *remote.List, source string) ([]types.Record, error) {
	url, err := sourceURL(source)
	if err != nil {
		return nil, userError("source %q: %s", source, err)
	}
	fetcher := remote.NewHTTPFetcher(codec.Options{DateFields: list.Config().DateFields})
	records, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, sysError("fetch %s: %s", source, err)
	}
	return records, nil
}

func newDiffCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var apply bool
	cmd := &cobra.Command{
		Use:   "diff <list> <file-or-url>",
		Short: "Compare a list with a replacement list",
		Long: "Print records of the list missing from the replacement (-) and records of\n" +
			"the replacement new to the list (+). With --apply, merge the replacement\n" +
			"into the list and save it.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			proposed, err := fetchSource(cmd.Context(), list, args[1])
			if err != nil {
				return err
			}

			if apply {
				changes, err := list.Merge(proposed)
				if err != nil {
					return userError("merge into %s: %s", list.Name(), err)
				}
				if err := list.Synchronize(); err != nil {
					return sysError("save %s: %s", list.Name(), err)
				}
				return a.printChanges(cmd.OutOrStdout(), list.Name(), changes)
			}

			gone := list.ItemsNotIn(proposed)
			added := list.ItemsNewIn(proposed)
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"removed": plainRecords(gone),
					"added":   plainRecords(added),
				})
			}
			w := cmd.OutOrStdout()
			for _, r := range gone {
				fmt.Fprintf(w, "- %s\n", formatRecord(r, list.UniqueKey()))
			}
			for _, r := range added {
				fmt.Fprintf(w, "+ %s\n", formatRecord(r, list.UniqueKey()))
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&apply, "apply", false, "merge the replacement into the list")
	return cmd
}

// printChanges reports the outcome of a merge.
func (a *app) printChanges(w io.Writer, name string, changes plist.Changes) error {
	if a.jsonMode {
		return writeJSON(w, map[string]any{
			"list":     name,
			"removed":  changeIDs(changes.Removed),
			"inserted": changeIDs(changes.Inserted),
			"updated":  changeIDs(changes.Updated),
		})
	}
	fmt.Fprintf(w, "%s: %d removed, %d inserted, %d updated\n",
		name, len(changes.Removed), len(changes.Inserted), len(changes.Updated))
	return nil
}

func changeIDs(changes []plist.Change) []int {
	out := make([]int, len(changes))
	for i, c := range changes {
		out[i] = c.Index
	}
	return out
}

// refreshError maps a refresh failure to an exit code.
func refreshError(err error) error {
	if errors.Is(err, remote.ErrNoURL) || errors.Is(err, types.ErrMissingKey) {
		return userError("%s", err)
	}
	return sysError("%s", err)
}

func newRefreshCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "refresh <list>",
		Short: "Fetch a list's remote URL and merge it into the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result := <-list.Refresh(ctx)
			if result.Err != nil {
				return refreshError(result.Err)
			}
			return a.printChanges(cmd.OutOrStdout(), list.Name(), result.Changes)
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (default: no limit beyond the HTTP client's)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	f := &listFlags{}
	var (
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "watch <list>",
		Short: "Refresh a list on a schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()
			if list.URL() == "" {
				return userError("refresh %s: %s", list.Name(), remote.ErrNoURL)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			w := cmd.OutOrStdout()
			done := 0
			err = list.Watch(ctx, interval, func(result remote.Result) {
				if result.Err != nil {
					glog.Warningf("[watch]%s error = %s\n", list.Name(), result.Err)
					fmt.Fprintf(w, "%s: %s\n", list.Name(), result.Err)
				} else {
					a.printChanges(w, list.Name(), result.Changes)
				}
				done++
				if count > 0 && done >= count {
					cancel()
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between refreshes (default: list refresh_interval, else 15m)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many refreshes (0: run until interrupted)")
	return cmd
}

func newFlushCmd(a *app) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "flush <list>",
		Short: "Empty a list and erase its stored records and refresh time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, detach, err := a.openList(args[0], f)
			if err != nil {
				return err
			}
			defer detach()

			if err := list.Flush(); err != nil {
				return sysError("%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed %s\n", list.Name())
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

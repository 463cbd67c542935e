// Package cli implements the shelf command-line interface.
package cli

import (
	"errors"
	goflag "flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/shelf/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// app holds global flag values and the loaded configuration for one
// invocation of the root command.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	config *viper.Viper
}

// NewRootCmd creates the top-level "shelf" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "shelf",
		Short: "Keep named record lists in step with their remote sources",
		Long: "Shelf stores ordered lists of uniquely-keyed records, refreshes them\n" +
			"from remote JSON, YAML, property-list or MessagePack documents, and\n" +
			"merges each refresh without disturbing local fields or ordering.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.configDir)
			if err != nil {
				return sysError("resolve config dir: %s", err)
			}
			a.configDir = configDir

			cfg, err := loadConfig(configDir)
			if err != nil {
				return sysError("%s", err)
			}
			a.config = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $SHELF_CONFIG_DIR)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.shelf-db)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newListsCmd(a),
		newShowCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newDiffCmd(a),
		newRefreshCmd(a),
		newWatchCmd(a),
		newSectionsCmd(a),
		newFlushCmd(a),
	)

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCode(err)
}

// resolveDataDir returns the data directory following the precedence:
// --data-dir flag > config.yaml data_dir > SHELF_DATA_DIR env > $(CWD)/.shelf-db.
func (a *app) resolveDataDir() (string, error) {
	configured := ""
	if a.config != nil {
		configured = a.config.GetString(cfgKeyDataDir)
	}
	return paths.ResolveDataDir(a.dataDir, configured)
}

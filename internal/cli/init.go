package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend string                `yaml:"backend"`
	DataDir string                `yaml:"data_dir,omitempty"`
	Lists   map[string]configList `yaml:"lists,omitempty"`
}

// configList is one entry under lists in config.yaml.
type configList struct {
	URL             string   `yaml:"url,omitempty"`
	UniqueKey       string   `yaml:"unique_key,omitempty"`
	UpdatableKeys   []string `yaml:"updatable_keys,omitempty"`
	SectionKey      string   `yaml:"section_key,omitempty"`
	DateFields      []string `yaml:"date_fields,omitempty"`
	RefreshInterval string   `yaml:"refresh_interval,omitempty"`
}

type initOptions struct {
	list            string
	entry           configList
	refreshInterval time.Duration
}

func newInitCmd(a *app) *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize shelf storage",
		Long: "Create configuration and data directories, then initialize the storage backend.\n" +
			"With --list, also register a named list in config.yaml.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.list, "list", "", "register a list under this name")
	cmd.Flags().StringVar(&opts.entry.URL, "url", "", "remote URL of the registered list")
	cmd.Flags().StringVar(&opts.entry.UniqueKey, "unique-key", defaultUniqueKey, "unique key of the registered list")
	cmd.Flags().StringSliceVar(&opts.entry.UpdatableKeys, "updatable-keys", nil, "updatable keys of the registered list")
	cmd.Flags().StringVar(&opts.entry.SectionKey, "section-key", "", "section key of the registered list")
	cmd.Flags().StringSliceVar(&opts.entry.DateFields, "date-fields", nil, "fields decoded as dates")
	cmd.Flags().DurationVar(&opts.refreshInterval, "refresh-interval", 0, "refresh interval of the registered list")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, opts *initOptions) error {
	configPath := filepath.Join(a.configDir, configFileExt)
	cfg, err := readConfigFile(configPath)
	if err != nil {
		return sysError("read config: %s", err)
	}

	changed := false
	if cfg.Backend == "" {
		cfg.Backend = defaultBackend
		changed = true
	}
	if a.dataDir != "" && cfg.DataDir != a.dataDir {
		cfg.DataDir = a.dataDir
		changed = true
	}
	if opts.list != "" {
		lc := types.ListConfig{
			Name:            opts.list,
			UniqueKey:       opts.entry.UniqueKey,
			RefreshInterval: opts.refreshInterval,
		}
		if err := lc.Validate(); err != nil {
			return userError("list %q: %s", opts.list, err)
		}
		entry := opts.entry
		if opts.refreshInterval > 0 {
			entry.RefreshInterval = opts.refreshInterval.String()
		}
		if cfg.Lists == nil {
			cfg.Lists = map[string]configList{}
		}
		cfg.Lists[opts.list] = entry
		changed = true
	}
	if changed {
		if err := writeConfigFile(configPath, cfg); err != nil {
			return sysError("write config: %s", err)
		}
	}

	dataDir := a.dataDir
	if dataDir == "" {
		dataDir, err = a.resolveDataDir()
		if err != nil {
			return sysError("resolve data dir: %s", err)
		}
	}

	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: cfg.Backend, DataDir: dataDir}); err != nil {
		return sysError("initialize storage: %s", err)
	}
	if err := backend.Detach(); err != nil {
		return sysError("finalize storage: %s", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Shelf initialized in %s\n", dataDir)
	if opts.list != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Registered list %s\n", opts.list)
	}
	return nil
}

// readConfigFile decodes config.yaml. A missing or comment-only file yields
// an empty configFile.
func readConfigFile(path string) (configFile, error) {
	var cfg configFile
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func writeConfigFile(path string, cfg configFile) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

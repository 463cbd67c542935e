package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend = "backend"
	cfgKeyDataDir = "data_dir"
	cfgKeyLists   = "lists"

	defaultBackend   = types.BackendSQLite
	defaultUniqueKey = "id"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Shelf CLI configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Named lists. Each list is persisted under its name.
# lists:
#   notifications:
#     url: https://example.com/notifications.plist
#     unique_key: id
#     updatable_keys: [title, body]
#     section_key: category
#     date_fields: [posted]
#     refresh_interval: 15m
`

// loadConfig reads config.yaml from the config directory using Viper.
// It creates the config directory and a default config.yaml on first run.
// A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// configuredLists decodes the lists section of config.yaml, keyed by name.
func configuredLists(v *viper.Viper) (map[string]types.ListConfig, error) {
	lists := map[string]types.ListConfig{}
	if v == nil || !v.IsSet(cfgKeyLists) {
		return lists, nil
	}
	if err := v.UnmarshalKey(cfgKeyLists, &lists); err != nil {
		return nil, fmt.Errorf("decode lists: %w", err)
	}
	for name, lc := range lists {
		lc.Name = name
		if lc.UniqueKey == "" {
			lc.UniqueKey = defaultUniqueKey
		}
		lists[name] = lc
	}
	return lists, nil
}

// configuredListNames returns the names of lists in config.yaml, sorted.
func configuredListNames(v *viper.Viper) ([]string, error) {
	lists, err := configuredLists(v)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(lists))
	for n := range lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrUniqueKeyEmpty  = errors.New("unique key must not be empty")
	ErrIntervalInvalid = errors.New("refresh interval must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}

// ListConfig describes one named list: where it comes from and how its
// records are identified, merged and grouped.
type ListConfig struct {
	Name            string        `json:"name" yaml:"name" mapstructure:"name"`
	URL             string        `json:"url" yaml:"url" mapstructure:"url"`
	UniqueKey       string        `json:"unique_key" yaml:"unique_key" mapstructure:"unique_key"`
	UpdatableKeys   []string      `json:"updatable_keys" yaml:"updatable_keys" mapstructure:"updatable_keys"`
	SectionKey      string        `json:"section_key" yaml:"section_key" mapstructure:"section_key"`
	DateFields      []string      `json:"date_fields" yaml:"date_fields" mapstructure:"date_fields"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`
}

// Validate checks that the list has a persistence name and a unique key.
func (c ListConfig) Validate() error {
	if c.Name == "" {
		return ErrInvalidName
	}
	if c.UniqueKey == "" {
		return ErrUniqueKeyEmpty
	}
	if c.RefreshInterval < 0 {
		return ErrIntervalInvalid
	}
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/shelf/internal/codec"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/internetdate"
	"github.com/mesh-intelligence/shelf/pkg/remote"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// listFlags are the per-command overrides for a list's configuration.
type listFlags struct {
	uniqueKey     string
	url           string
	updatableKeys []string
	sectionKey    string
}

func (f *listFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.uniqueKey, "unique-key", "", "field identifying records (default: from config, else \"id\")")
	fs.StringVar(&f.url, "url", "", "remote list URL (default: from config)")
	fs.StringSliceVar(&f.updatableKeys, "updatable-keys", nil, "fields copied from refreshed records (default: from config)")
}

// attachBackend resolves the data directory, creates a SQLite backend, and
// attaches it. The caller must defer backend.Detach().
func (a *app) attachBackend() (*sqlite.Backend, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, sysError("resolve data dir: %s", err)
	}

	backend := sqlite.NewBackend()
	cfg := types.Config{
		Backend: a.config.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError("attach backend: %s", err)
	}
	return backend, nil
}

// listConfig returns the configuration of the named list from config.yaml,
// with command-line overrides applied. Unknown names get defaults.
func (a *app) listConfig(name string, f *listFlags) (types.ListConfig, error) {
	lists, err := configuredLists(a.config)
	if err != nil {
		return types.ListConfig{}, userError("%s", err)
	}
	lc, ok := lists[strings.ToLower(name)]
	if !ok {
		lc = types.ListConfig{UniqueKey: defaultUniqueKey}
	}
	lc.Name = name
	if f != nil {
		if f.uniqueKey != "" {
			lc.UniqueKey = f.uniqueKey
		}
		if f.url != "" {
			lc.URL = f.url
		}
		if f.updatableKeys != nil {
			lc.UpdatableKeys = f.updatableKeys
		}
		if f.sectionKey != "" {
			lc.SectionKey = f.sectionKey
		}
	}
	if err := lc.Validate(); err != nil {
		return types.ListConfig{}, userError("list %q: %s", name, err)
	}
	return lc, nil
}

// openList attaches the backend and loads the named list. The returned
// function detaches the backend.
func (a *app) openList(name string, f *listFlags) (*remote.List, func() error, error) {
	lc, err := a.listConfig(name, f)
	if err != nil {
		return nil, nil, err
	}
	backend, err := a.attachBackend()
	if err != nil {
		return nil, nil, err
	}
	fetcher := remote.NewHTTPFetcher(codec.Options{DateFields: lc.DateFields})
	list, err := remote.New(lc, backend, fetcher)
	if err != nil {
		backend.Detach()
		return nil, nil, sysError("open list %q: %s", name, err)
	}
	return list, backend.Detach, nil
}

// sourceURL turns a command argument into a fetchable URL. Arguments without
// a scheme are treated as local file paths.
func sourceURL(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// parseValue converts a command-line string into a Value of the given kind.
// Kind "auto" picks number, bool or date when the text parses as one.
func parseValue(kind, raw string) (types.Value, error) {
	switch kind {
	case "string":
		return types.String(raw), nil
	case "number":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("%q is not a number", raw)
		}
		return types.Number(n), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return types.Value{}, fmt.Errorf("%q is not a bool", raw)
		}
		return types.Bool(b), nil
	case "date":
		t, err := internetdate.Parse(raw)
		if err != nil {
			return types.Value{}, err
		}
		return types.Date(t), nil
	case "json":
		var x any
		if err := json.Unmarshal([]byte(raw), &x); err != nil {
			return types.Value{}, fmt.Errorf("%q is not JSON: %w", raw, err)
		}
		return types.FromInterface(x)
	case "auto", "":
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return types.Number(n), nil
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			return types.Bool(b), nil
		}
		if t, err := internetdate.ParseRFC3339(raw); err == nil {
			return types.Date(t), nil
		}
		return types.String(raw), nil
	default:
		return types.Value{}, fmt.Errorf("unknown value type %q (want auto, string, number, bool, date, json)", kind)
	}
}

// plainRecords converts records to plain values for JSON output.
func plainRecords(records []types.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v.Interface()
		}
		out[i] = m
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatRecord renders a record as "key=value" pairs with the unique key first.
func formatRecord(r types.Record, uniqueKey string) string {
	var b strings.Builder
	if v, ok := r[uniqueKey]; ok {
		fmt.Fprintf(&b, "%s=%s", uniqueKey, v.Key())
	}
	for _, k := range r.FieldNames() {
		if k == uniqueKey {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", k, r[k].Key())
	}
	return b.String()
}

// printRecords writes records as JSON or as one numbered line each.
func (a *app) printRecords(w io.Writer, records []types.Record, uniqueKey string) error {
	if a.jsonMode {
		return writeJSON(w, plainRecords(records))
	}
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\n", i, formatRecord(r, uniqueKey))
	}
	return nil
}

package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	t         *testing.T
	dir       string
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		t:         t,
		dir:       dir,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

type cmdResult struct {
	stdout string
	stderr string
	code   int
}

func (e *testEnv) run(args ...string) cmdResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	all := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	code := run(all, &stdout, &stderr)
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run(args...)
	require.Equal(e.t, exitSuccess, res.code, "shelf %v\nstdout: %s\nstderr: %s", args, res.stdout, res.stderr)
	return res
}

// writeFile writes content under the env directory and returns its path.
func (e *testEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(s), &out), "output: %s", s)
	return out
}

func ids(records []map[string]any) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i], _ = r["id"].(string)
	}
	return out
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"version"}, &stdout, &stderr)

	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout.String(), "shelf v")
	assert.Contains(t, stdout.String(), "module: github.com/mesh-intelligence/shelf")
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	res := env.mustRun("init")
	assert.Contains(t, res.stdout, "Shelf initialized")

	for _, path := range []string{
		filepath.Join(env.configDir, "config.yaml"),
		filepath.Join(env.dataDir, "lists.jsonl"),
		filepath.Join(env.dataDir, "list_refreshes.jsonl"),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "%s should exist", path)
	}

	data, err := os.ReadFile(filepath.Join(env.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+env.dataDir)

	// Idempotent.
	env.mustRun("init")
}

func TestInit_RegistersList(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun("init", "--list", "notifications", "--url", "https://example.com/n.json",
		"--unique-key", "key", "--updatable-keys", "title,body", "--refresh-interval", "5m")

	res := env.mustRun("--json", "lists")
	assert.Equal(t, []string{"notifications"}, parseJSON[[]string](t, res.stdout))

	// The registered unique key is used by later commands.
	env.mustRun("add", "notifications", "--id", "n1", "title=hello")
	res = env.mustRun("--json", "get", "notifications", "n1")
	got := parseJSON[map[string]any](t, res.stdout)
	assert.Equal(t, "n1", got["key"])
	assert.Equal(t, "hello", got["title"])
}

func TestInit_RejectsEmptyUniqueKey(t *testing.T) {
	env := newTestEnv(t)
	res := env.run("init", "--list", "bad", "--unique-key", "")
	assert.Equal(t, exitUserError, res.code)
}

func TestRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	env.mustRun("add", "todo", "--id", "A", "title=first", "rank=1")
	env.mustRun("add", "todo", "--id", "B", "title=second", "done=false")
	res := env.mustRun("add", "todo", "title=generated")
	generated := strings.TrimSpace(res.stdout)
	assert.Len(t, generated, 36, "generated id is a UUID")

	res = env.mustRun("--json", "show", "todo")
	shown := parseJSON[struct {
		Name    string           `json:"name"`
		Records []map[string]any `json:"records"`
	}](t, res.stdout)
	assert.Equal(t, "todo", shown.Name)
	assert.Equal(t, []string{"A", "B", generated}, ids(shown.Records))
	assert.Equal(t, 1.0, shown.Records[0]["rank"])
	assert.Equal(t, false, shown.Records[1]["done"])

	env.mustRun("set", "todo", "A", "title", "renamed")
	env.mustRun("set", "todo", "A", "code", "007", "--type", "string")
	res = env.mustRun("--json", "get", "todo", "A")
	got := parseJSON[map[string]any](t, res.stdout)
	assert.Equal(t, "renamed", got["title"])
	assert.Equal(t, "007", got["code"])

	env.mustRun("remove", "todo", "B")
	res = env.mustRun("--json", "show", "todo")
	shown.Records = nil
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &shown))
	assert.Equal(t, []string{"A", generated}, ids(shown.Records))

	res = env.mustRun("show", "todo")
	assert.Contains(t, res.stdout, "0\tid=A code=007 rank=1 title=renamed")
}

func TestRecordErrors(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")
	env.mustRun("add", "todo", "--id", "A")
	env.mustRun("add", "todo", "--id", "B")

	tests := []struct {
		name string
		args []string
	}{
		{"get missing", []string{"get", "todo", "Z"}},
		{"set missing", []string{"set", "todo", "Z", "title", "x"}},
		{"remove missing", []string{"remove", "todo", "Z"}},
		{"duplicate add", []string{"add", "todo", "--id", "A"}},
		{"bad pair", []string{"add", "todo", "novalue"}},
		{"unique key collision", []string{"set", "todo", "A", "id", "B"}},
		{"null unique key", []string{"set", "todo", "A", "id", "null", "--type", "json"}},
		{"bad number", []string{"set", "todo", "A", "n", "x", "--type", "number"}},
		{"unknown type", []string{"set", "todo", "A", "n", "x", "--type", "blob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(tt.args...)
			assert.Equal(t, exitUserError, res.code, "stderr: %s", res.stderr)
			assert.Contains(t, res.stderr, "error:")
		})
	}

	res := env.mustRun("--json", "show", "todo")
	shown := parseJSON[struct {
		Records []map[string]any `json:"records"`
	}](t, res.stdout)
	assert.Equal(t, []string{"A", "B"}, ids(shown.Records), "failed commands leave the list unchanged")
}

func TestDiff(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")
	env.mustRun("add", "todo", "--id", "A", "title=a")
	env.mustRun("add", "todo", "--id", "B", "title=b", "note=local")
	env.mustRun("add", "todo", "--id", "C", "title=c")

	proposed := env.writeFile("proposed.json", `[
		// comments are allowed
		{"id": "B", "title": "b2"},
		{"id": "C", "title": "c"},
		{"id": "D", "title": "d"},
	]`)

	res := env.mustRun("diff", "todo", proposed)
	assert.Equal(t, "- id=A title=a\n+ id=D title=d\n", res.stdout)

	res = env.mustRun("--json", "diff", "todo", proposed)
	diff := parseJSON[struct {
		Removed []map[string]any `json:"removed"`
		Added   []map[string]any `json:"added"`
	}](t, res.stdout)
	assert.Equal(t, []string{"A"}, ids(diff.Removed))
	assert.Equal(t, []string{"D"}, ids(diff.Added))

	res = env.mustRun("diff", "todo", proposed, "--apply", "--updatable-keys", "title")
	assert.Equal(t, "todo: 1 removed, 1 inserted, 1 updated\n", res.stdout)

	res = env.mustRun("--json", "show", "todo")
	shown := parseJSON[struct {
		Records []map[string]any `json:"records"`
	}](t, res.stdout)
	require.Equal(t, []string{"B", "C", "D"}, ids(shown.Records))
	assert.Equal(t, "b2", shown.Records[0]["title"])
	assert.Equal(t, "local", shown.Records[0]["note"])

	res = env.run("diff", "todo", filepath.Join(env.dir, "missing.json"))
	assert.Equal(t, exitSysError, res.code)
}

func TestRefresh(t *testing.T) {
	var body atomic.Value
	body.Store(`[{"id": "A", "title": "a"}, {"id": "B", "title": "b"}]`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.mustRun("init", "--list", "feed", "--url", srv.URL+"/feed", "--updatable-keys", "title")

	res := env.mustRun("refresh", "feed")
	assert.Equal(t, "feed: 0 removed, 2 inserted, 0 updated\n", res.stdout)

	env.mustRun("set", "feed", "A", "starred", "true")
	body.Store(`[{"id": "A", "title": "a2"}, {"id": "C", "title": "c"}]`)

	res = env.mustRun("--json", "refresh", "feed")
	changes := parseJSON[map[string]any](t, res.stdout)
	assert.Equal(t, []any{1.0}, changes["removed"])
	assert.Equal(t, []any{1.0}, changes["inserted"])
	assert.Equal(t, []any{0.0}, changes["updated"])

	res = env.mustRun("--json", "show", "feed")
	shown := parseJSON[struct {
		Records       []map[string]any `json:"records"`
		LatestRefresh string           `json:"latest_refresh"`
	}](t, res.stdout)
	require.Equal(t, []string{"A", "C"}, ids(shown.Records))
	assert.Equal(t, "a2", shown.Records[0]["title"])
	assert.Equal(t, true, shown.Records[0]["starred"])
	assert.NotEmpty(t, shown.LatestRefresh)
}

func TestRefresh_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.mustRun("init")
	env.mustRun("add", "feed", "--id", "A")

	res := env.run("refresh", "feed")
	assert.Equal(t, exitUserError, res.code, "no URL")

	res = env.run("refresh", "feed", "--url", srv.URL)
	assert.Equal(t, exitSysError, res.code, "server error")

	res = env.mustRun("--json", "show", "feed")
	shown := parseJSON[struct {
		Records []map[string]any `json:"records"`
	}](t, res.stdout)
	assert.Equal(t, []string{"A"}, ids(shown.Records), "failed refresh leaves the list unchanged")
}

func TestWatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Write([]byte("- id: A\n- id: B\n"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.mustRun("init")

	res := env.mustRun("watch", "feed", "--url", srv.URL, "--interval", "10ms", "--count", "2")
	assert.Equal(t, "feed: 0 removed, 2 inserted, 0 updated\nfeed: 0 removed, 0 inserted, 0 updated\n", res.stdout)

	res = env.run("watch", "other", "--count", "1")
	assert.Equal(t, exitUserError, res.code)
}

func TestSections(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init", "--list", "mail", "--section-key", "folder", "--updatable-keys", "folder")
	env.mustRun("add", "mail", "--id", "1", "folder=inbox")
	env.mustRun("add", "mail", "--id", "2", "folder=archive")
	env.mustRun("add", "mail", "--id", "3", "folder=inbox")

	res := env.mustRun("sections", "mail")
	assert.Equal(t, "[0] inbox\n  0.0\t1\n  0.1\t3\n[1] archive\n  1.0\t2\n", res.stdout)

	res = env.mustRun("--json", "sections", "mail", "--section-key", "id")
	grouped := parseJSON[[]map[string]any](t, res.stdout)
	assert.Len(t, grouped, 3)

	next := env.writeFile("next.yaml", "- {id: '1', folder: inbox}\n- {id: '3', folder: inbox}\n- {id: '4', folder: spam}\n")
	res = env.mustRun("--json", "sections", "mail", "--from", next)
	changes := parseJSON[map[string][]any](t, res.stdout)
	assert.Equal(t, []any{1.0}, changes["deleted_sections"])
	assert.Equal(t, []any{1.0}, changes["inserted_sections"])
	assert.Empty(t, changes["deleted_rows"])
	assert.Empty(t, changes["inserted_rows"])

	// --from does not modify the stored list.
	res = env.mustRun("sections", "mail")
	assert.Contains(t, res.stdout, "[1] archive")
}

func TestFlush(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")
	env.mustRun("add", "todo", "--id", "A")

	res := env.mustRun("flush", "todo")
	assert.Contains(t, res.stdout, "Flushed todo")

	res = env.mustRun("--json", "show", "todo")
	shown := parseJSON[struct {
		Records []map[string]any `json:"records"`
	}](t, res.stdout)
	assert.Empty(t, shown.Records)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind, raw string
		want      any
		wantErr   bool
	}{
		{"auto", "12.5", 12.5, false},
		{"auto", "true", true, false},
		{"auto", "hello", "hello", false},
		{"string", "12", "12", false},
		{"number", "3", 3.0, false},
		{"bool", "false", false, false},
		{"json", `{"a":[1,"b"]}`, map[string]any{"a": []any{1.0, "b"}}, false},
		{"number", "x", nil, true},
		{"bool", "maybe", nil, true},
		{"json", "{", nil, true},
		{"date", "not a date", nil, true},
		{"blob", "x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.raw, func(t *testing.T) {
			v, err := parseValue(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Interface())
		})
	}

	v, err := parseValue("date", "Wed, 13 Nov 2013 09:30:00 GMT")
	require.NoError(t, err)
	got, ok := v.Time()
	require.True(t, ok)
	assert.Equal(t, 2013, got.Year())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitSysError, exitCode(sysError("boom")))
	assert.Equal(t, exitUserError, exitCode(userError("bad")))
	assert.Equal(t, exitUserError, exitCode(assert.AnError))
}

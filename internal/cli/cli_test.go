package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/showcase/internal/defaults"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	t         *testing.T
	ConfigDir string
	DataDir   string
}

type runResult struct {
	Stdout   string
	Stderr   string
	Err      error
	ExitCode int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{"SHOWCASE_CONFIG_DIR", "SHOWCASE_DATA_DIR", "SHOWCASE_SYNC_STRATEGY", "SHOWCASE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	root := t.TempDir()
	return &testEnv{
		t:         t,
		ConfigDir: filepath.Join(root, "config"),
		DataDir:   filepath.Join(root, "data"),
	}
}

func (e *testEnv) args(args ...string) []string {
	return append([]string{"--config-dir", e.ConfigDir, "--data-dir", e.DataDir}, args...)
}

func (e *testEnv) run(args ...string) runResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(e.args(args...))
	err := root.ExecuteContext(context.Background())
	return runResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err, ExitCode: exitCode(err)}
}

func (e *testEnv) mustRun(args ...string) runResult {
	e.t.Helper()
	r := e.run(args...)
	require.NoError(e.t, r.Err, "showcase %s\nstderr: %s", strings.Join(args, " "), r.Stderr)
	return r
}

func (e *testEnv) list(collection string) collectionJSON {
	e.t.Helper()
	r := e.mustRun("--json", "list", collection)
	var c collectionJSON
	require.NoError(e.t, json.Unmarshal([]byte(r.Stdout), &c), r.Stdout)
	return c
}

func ids(c collectionJSON) []string {
	got := make([]string, len(c.Items))
	for i, it := range c.Items {
		got[i] = it.ID
	}
	return got
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("version")
	assert.Contains(t, r.Stdout, "showcase v"+Version)
	assert.Contains(t, r.Stdout, modulePath)
	_, err := os.Stat(env.ConfigDir)
	assert.True(t, os.IsNotExist(err), "version must not touch the config directory")
}

func TestInit_CreatesConfigAndData(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("init")
	assert.Contains(t, r.Stdout, "Showcase initialized successfully")

	data, err := os.ReadFile(filepath.Join(env.ConfigDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "initial_delay: 500ms")

	_, err = os.Stat(filepath.Join(env.DataDir, "documents.jsonl"))
	assert.NoError(t, err)

	// A second init keeps the existing config.
	require.NoError(t, os.WriteFile(filepath.Join(env.ConfigDir, configFileExt), []byte("backend: sqlite\n"), 0o644))
	env.mustRun("init")
	data, err = os.ReadFile(filepath.Join(env.ConfigDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, "backend: sqlite\n", string(data))
}

func TestList_DefaultsUntilSeeded(t *testing.T) {
	env := newTestEnv(t)
	want := defaults.MustLoad().Items("projects")

	c := env.list("projects")
	assert.True(t, c.FromDefaults)
	assert.Len(t, c.Items, len(want))

	r := env.mustRun("seed")
	assert.Contains(t, r.Stdout, "profile: seeded")

	c = env.list("projects")
	assert.False(t, c.FromDefaults)
	require.Len(t, c.Items, len(want))
	for i, it := range c.Items {
		require.NotNil(t, it.Order)
		assert.Equal(t, i, *it.Order)
	}

	r = env.mustRun("seed", "projects")
	assert.Contains(t, r.Stdout, "projects: skipped")
	assert.Equal(t, ids(c), ids(env.list("projects")))

	env.mustRun("seed", "--force", "projects")
	assert.NotEqual(t, ids(c), ids(env.list("projects")))
}

func TestItems_AddUpdateDelete(t *testing.T) {
	env := newTestEnv(t)

	id := strings.TrimSpace(env.mustRun("add", "crew", "organization=Studio", "role=lead").Stdout)
	require.NotEmpty(t, id)

	c := env.list("crew")
	assert.False(t, c.FromDefaults)
	require.Len(t, c.Items, 1)
	assert.Equal(t, id, c.Items[0].ID)
	assert.Equal(t, "lead", c.Items[0].Fields["role"])

	env.mustRun("update", "crew", id, "role=director", "years=3")
	c = env.list("crew")
	require.Len(t, c.Items, 1)
	assert.Equal(t, "director", c.Items[0].Fields["role"])
	assert.Equal(t, float64(3), c.Items[0].Fields["years"])
	assert.Equal(t, "Studio", c.Items[0].Fields["organization"])

	r := env.mustRun("delete", "crew", id)
	assert.Contains(t, r.Stdout, "Deleted crew/"+id)
	assert.True(t, env.list("crew").FromDefaults, "an emptied collection renders defaults again")
}

func TestItems_UpdateDefaultStoresIt(t *testing.T) {
	env := newTestEnv(t)
	def := defaults.MustLoad().Items("visual")[0]

	env.mustRun("update", "visual", def.ID, "caption=edited")
	c := env.list("visual")
	assert.False(t, c.FromDefaults)
	require.Len(t, c.Items, 1)
	assert.NotEqual(t, def.ID, c.Items[0].ID)
	assert.Equal(t, "edited", c.Items[0].Fields["caption"])
}

func TestReorder(t *testing.T) {
	env := newTestEnv(t)
	a := strings.TrimSpace(env.mustRun("add", "clip", "title=a").Stdout)
	b := strings.TrimSpace(env.mustRun("add", "clip", "title=b").Stdout)
	c := strings.TrimSpace(env.mustRun("add", "clip", "title=c").Stdout)
	require.Equal(t, []string{a, b, c}, ids(env.list("clip")))

	// Each command prints the collection as it is after the change.
	assert.Equal(t, []string{b, a, c}, env.reorder("move-down", "clip", "0"))
	assert.Equal(t, []string{b, a, c}, ids(env.list("clip")))

	assert.Equal(t, []string{b, c, a}, env.reorder("move-up", "clip", "2"))
	assert.Equal(t, []string{b, c, a}, ids(env.list("clip")))

	r := env.mustRun("swap", "clip", "0", "2")
	assert.Contains(t, r.Stdout, "clip (remote, 3 items)")
	assert.Equal(t, []string{a, c, b}, ids(env.list("clip")))

	// Boundary moves leave the order unchanged.
	assert.Equal(t, []string{a, c, b}, env.reorder("move-up", "clip", "0"))
	assert.Equal(t, []string{a, c, b}, env.reorder("move-down", "clip", "2"))
	assert.Equal(t, []string{a, c, b}, ids(env.list("clip")))

	assert.Equal(t, []string{a, c, b}, env.reorder("reindex", "clip"))
	got := env.list("clip")
	assert.Equal(t, []string{a, c, b}, ids(got))
	for i, it := range got.Items {
		require.NotNil(t, it.Order)
		assert.Equal(t, i, *it.Order)
	}
}

// reorder runs a reorder command in JSON mode and returns the item IDs it
// printed.
func (e *testEnv) reorder(args ...string) []string {
	e.t.Helper()
	r := e.mustRun(append([]string{"--json"}, args...)...)
	var c collectionJSON
	require.NoError(e.t, json.Unmarshal([]byte(r.Stdout), &c), r.Stdout)
	return ids(c)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	bundle := defaults.MustLoad()

	r := env.mustRun("profile", "get", "siteTitle")
	assert.Equal(t, bundle.Profile().SiteTitle()+"\n", r.Stdout)

	r = env.mustRun("profile", "set", "siteTitle=Mine", `roles=["a","b"]`)
	assert.Contains(t, r.Stdout, "Updated profile: roles, siteTitle")

	r = env.mustRun("profile", "get", "siteTitle")
	assert.Equal(t, "Mine\n", r.Stdout)

	r = env.mustRun("--json", "profile", "get")
	var p profileJSON
	require.NoError(t, json.Unmarshal([]byte(r.Stdout), &p))
	assert.False(t, p.FromDefaults)
	assert.Equal(t, []any{"a", "b"}, p.Fields["roles"])
	assert.Equal(t, bundle.Profile().Headline(), p.Fields["headline"], "the first save stores every default field")

	r = env.run("profile", "get", "missing")
	assert.ErrorIs(t, r.Err, types.ErrNotFound)
}

func TestExitCodes(t *testing.T) {
	env := newTestEnv(t)
	id := strings.TrimSpace(env.mustRun("add", "crew", "role=lead").Stdout)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "invalid collection", args: []string{"list", "Bad Name"}, want: exitUserError},
		{name: "missing args", args: []string{"list"}, want: exitUserError},
		{name: "unknown flag", args: []string{"list", "crew", "--bogus"}, want: exitUserError},
		{name: "bad assignment", args: []string{"add", "crew", "role"}, want: exitUserError},
		{name: "bad position", args: []string{"swap", "crew", "x", "0"}, want: exitUserError},
		{name: "out of range", args: []string{"move-up", "crew", "5"}, want: exitUserError},
		{name: "reorder defaults", args: []string{"reindex", "projects"}, want: exitUserError},
		{name: "delete missing", args: []string{"delete", "crew", "nope"}, want: exitUserError},
		{name: "reserved field", args: []string{"update", "crew", id, "order=3"}, want: exitUserError},
		{name: "ok", args: []string{"list", "crew"}, want: exitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := env.run(tt.args...)
			assert.Equal(t, tt.want, r.ExitCode, "err: %v", r.Err)
		})
	}

	assert.Equal(t, exitSysError, exitCode(errors.New("disk on fire")))
}

func TestConfig_EnvOverrides(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("SHOWCASE_SYNC_STRATEGY", "bogus")
	r := env.run("list", "crew")
	assert.ErrorIs(t, r.Err, types.ErrSyncStrategyUnknown)
	assert.Equal(t, exitUserError, r.ExitCode)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte(`
backend: sqlite
sync_strategy: on_close
watch_files: false
retry:
  max_attempts: 2
  initial_delay: 1s
log:
  level: debug
`), 0o644))
	t.Setenv("SHOWCASE_RETRY_MAX_DELAY", "7s")

	s, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, types.SyncOnClose, s.Store.SyncStrategy)
	assert.False(t, s.Store.WatchFiles)
	assert.Equal(t, 2, s.Store.Retry.MaxAttempts)
	assert.Equal(t, time.Second, s.Store.Retry.InitialDelay)
	assert.Equal(t, 7*time.Second, s.Store.Retry.MaxDelay)
	assert.Equal(t, types.DefaultRetryConfig.Multiplier, s.Store.Retry.Multiplier)
	assert.Equal(t, "debug", s.Log.Level)
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsRemoteChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the file watcher")
	}
	env := newTestEnv(t)
	env.mustRun("init")

	ctx, cancel := context.WithCancel(context.Background())
	var stdout syncBuffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(env.args("--json", "watch", "crew"))

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), `"fromDefaults":true`)
	}, 5*time.Second, 10*time.Millisecond)

	env.mustRun("add", "crew", "organization=Watched")

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), `"organization":"Watched"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

package cmd

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/config"
)

const fixtures = "../core/datasheet/testdata/catalog"

func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "halflife-cmd")
	if err != nil {
		panic(err)
	}
	os.Setenv("XDG_CONFIG_HOME", home)
	os.Setenv("XDG_DATA_HOME", home)

	code := m.Run()
	os.RemoveAll(home)
	os.Exit(code)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
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

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut syncBuffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := execute(t, context.Background(), args...)
	return out, err
}

// rows splits the tab-separated lines of out into fields, skipping the
// first one, which is the table header.
func rows(out string) [][]string {
	var (
		res    [][]string
		header bool
	)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.Contains(line, "\t") {
			continue
		}
		if !header {
			header = true
			continue
		}
		res = append(res, strings.Split(line, "\t"))
	}
	return res
}

func findRow(t *testing.T, out string, cols ...string) []string {
	t.Helper()
	for _, r := range rows(out) {
		match := true
		for i, c := range cols {
			if c != "" && (i >= len(r) || r[i] != c) {
				match = false
				break
			}
		}
		if match {
			return r
		}
	}
	t.Fatalf("no row matching %q in\n%s", cols, out)
	return nil
}

func cell(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

// =============================================================================
// Root Command Tests
// =============================================================================

func TestRootCommand_Definition(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "halflife", root.Use)

	for _, name := range []string{"config", "dir", "log-level", "log-format", "workers"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "D", root.PersistentFlags().Lookup("dir").Shorthand)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"catalog", "chain", "activity", "spectrum", "halflife", "identify"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_InvalidGlobalFlags(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "-D", fixtures, "halflife", "Eu-155")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "--log-format", "xml", "-D", fixtures, "halflife", "Eu-155")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "--workers", "-1", "-D", fixtures, "halflife", "Eu-155")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootCommand_ConfigFile(t *testing.T) {
	path := t.TempDir() + "/halflife.yaml"
	require.NoError(t, os.WriteFile(path, []byte("datasheet:\n  dir: "+fixtures+"\nlog:\n  format: json\n  level: debug\n"), 0o644))

	out, stderr, err := execute(t, context.Background(), "--config", path, "halflife", "Eu-155")
	require.NoError(t, err)
	findRow(t, out, "Eu-155")
	assert.Contains(t, stderr, `"level":"DEBUG"`)

	_, err = run(t, "--config", path+".missing", "halflife", "Eu-155")
	assert.Error(t, err)
}

func TestRootCommand_MissingDirectory(t *testing.T) {
	_, err := run(t, "-D", t.TempDir()+"/absent", "halflife", "Eu-155")
	assert.Error(t, err)

	_, err = run(t, "-D", t.TempDir(), "halflife", "Eu-155")
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

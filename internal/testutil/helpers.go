package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/pkg/formatter/php"
)

// WriteFile creates path with content, creating parent directories as needed.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	path = filepath.Clean(path)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "create parent of %s", path)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "write %s", path)
}

// WriteTree creates every file of tree below root. Keys use forward slashes; a key
// ending in "/" creates an empty directory.
func WriteTree(t *testing.T, root string, tree map[string]string) {
	t.Helper()
	for rel, content := range tree {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			require.NoError(t, os.MkdirAll(full, 0o755), "create dir %s", full)
			continue
		}
		WriteFile(t, full, content)
	}
}

// Chdir changes the working directory to dir for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func Chdir(t *testing.T, dir string) {
	t.Helper()
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		require.NoError(t, err, "resolve %s", dir)
		dir = abs
	}
	prev, err := os.Getwd()
	require.NoError(t, err, "get working directory")
	require.NoError(t, os.Chdir(dir), "chdir %s", dir)
	if runtime.GOOS != "windows" {
		t.Setenv("PWD", dir)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			panic("testutil.Chdir: restore working directory: " + err.Error())
		}
	})
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	return string(data)
}

// NewTestLogger returns a debug-level text handler writing to the returned buffer.
func NewTestLogger() (slog.Handler, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}), buf
}

// IdentityFormatter returns every source unchanged.
var IdentityFormatter = php.FormatterFunc(func(_ context.Context, source string, _ php.Options) (string, error) {
	return source, nil
})

// SpacingFormatter puts a single space on both sides of every `==`. It is idempotent,
// which makes it a stand-in for a real formatter in end-to-end tests.
var SpacingFormatter = php.FormatterFunc(func(_ context.Context, source string, _ php.Options) (string, error) {
	fields := strings.Split(source, "==")
	for i := range fields {
		if i > 0 {
			fields[i] = strings.TrimLeft(fields[i], " ")
		}
		if i < len(fields)-1 {
			fields[i] = strings.TrimRight(fields[i], " ")
		}
	}
	return strings.Join(fields, " == "), nil
})

package util_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/pkg/util"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Creates file and parent directories", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "views", "layouts", "app.blade.php")

		require.NoError(t, util.WriteFileAtomic(target, []byte("@yield('content')\n"), 0o644))

		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "@yield('content')\n", string(got))
	})

	t.Run("Replaces existing content and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "index.blade.php")
		require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

		require.NoError(t, util.WriteFileAtomic(target, []byte("new"), 0o644))

		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "index.blade.php", entries[0].Name())
	})

	t.Run("Applies permissions", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not meaningful on windows")
		}
		dir := t.TempDir()
		target := filepath.Join(dir, "perm.blade.php")

		require.NoError(t, util.WriteFileAtomic(target, []byte("x"), 0o600))

		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})
}

func TestHasExtension(t *testing.T) {
	testCases := []struct {
		name string
		path string
		exts []string
		want bool
	}{
		{"Multi-dot extension", "resources/views/welcome.blade.php", []string{".blade.php"}, true},
		{"Case insensitive", "Welcome.BLADE.PHP", []string{".blade.php"}, true},
		{"Missing leading dot in config", "welcome.blade.php", []string{"blade.php"}, true},
		{"Plain php is not blade", "app/Http/Kernel.php", []string{".blade.php"}, false},
		{"Bare extension name is not a match", ".blade.php", []string{".blade.php"}, false},
		{"Second extension matches", "mail.html", []string{".blade.php", ".html"}, true},
		{"Empty list matches everything", "anything.txt", nil, true},
		{"Blank entries ignored", "anything.txt", []string{" "}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, util.HasExtension(tc.path, tc.exts))
		})
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := util.NormalizeExtensions([]string{"blade.php", ".BLADE.PHP", "", ".", " .html "})
	assert.Equal(t, []string{".blade.php", ".html"}, got)
}

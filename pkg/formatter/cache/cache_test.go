package cache_test

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/pkg/formatter/cache"
)

func newManager(t *testing.T, version, format string) (cache.Manager, string) {
	t.Helper()
	logBuf := &bytes.Buffer{}
	handler := slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("--- cache logs ---\n%s", logBuf.String())
		}
	})
	return cache.NewFileManager(handler, version, format), filepath.Join(t.TempDir(), ".blade-formatter.cache")
}

func TestManager_CheckAndUpdate(t *testing.T) {
	m, path := newManager(t, "v1.0.0", cache.FormatGob)
	require.NoError(t, m.Load(path))

	assert.False(t, m.Check("a.blade.php", "h1", "c1"), "empty cache must miss")

	require.NoError(t, m.Update("a.blade.php", "h1", "c1"))
	assert.True(t, m.Check("a.blade.php", "h1", "c1"))
	assert.False(t, m.Check("a.blade.php", "h2", "c1"), "content change must miss")
	assert.False(t, m.Check("a.blade.php", "h1", "c2"), "config change must miss")
	assert.False(t, m.Check("b.blade.php", "h1", "c1"), "other path must miss")
}

func TestManager_PersistAndLoad(t *testing.T) {
	for _, format := range []string{cache.FormatGob, cache.FormatJSON} {
		t.Run(format, func(t *testing.T) {
			m, path := newManager(t, "v1.0.0", format)
			require.NoError(t, m.Load(path))
			require.NoError(t, m.Update("views/a.blade.php", "h1", "c1"))
			require.NoError(t, m.Update("views/b.blade.php", "h2", "c1"))
			require.NoError(t, m.Persist(path))

			reloaded := cache.NewFileManager(nil, "v1.0.0", format)
			require.NoError(t, reloaded.Load(path))
			assert.True(t, reloaded.Check("views/a.blade.php", "h1", "c1"))
			assert.True(t, reloaded.Check("views/b.blade.php", "h2", "c1"))
		})
	}
}

func TestManager_JSONLayout(t *testing.T) {
	m, path := newManager(t, "v2.0.0", cache.FormatJSON)
	require.NoError(t, m.Update("x.blade.php", "h", "c"))
	require.NoError(t, m.Persist(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Header cache.Header           `json:"header"`
		Index  map[string]cache.Entry `json:"index"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cache.SchemaVersion, decoded.Header.SchemaVersion)
	assert.Equal(t, "v2.0.0", decoded.Header.ToolVersion)
	assert.Equal(t, cache.Entry{ContentHash: "h", ConfigHash: "c", ToolVersion: "v2.0.0"}, decoded.Index["x.blade.php"])
}

func TestManager_LoadInvalidation(t *testing.T) {
	t.Run("Tool version mismatch empties the index", func(t *testing.T) {
		m, path := newManager(t, "v1.0.0", cache.FormatGob)
		require.NoError(t, m.Update("a.blade.php", "h", "c"))
		require.NoError(t, m.Persist(path))

		other := cache.NewFileManager(nil, "v1.1.0", cache.FormatGob)
		require.NoError(t, other.Load(path))
		assert.False(t, other.Check("a.blade.php", "h", "c"))
	})

	t.Run("Dev builds accept any version", func(t *testing.T) {
		m, path := newManager(t, "v1.0.0", cache.FormatGob)
		require.NoError(t, m.Update("a.blade.php", "h", "c"))
		require.NoError(t, m.Persist(path))

		dev := cache.NewFileManager(nil, "dev", cache.FormatGob)
		require.NoError(t, dev.Load(path))
		assert.True(t, dev.Check("a.blade.php", "h", "c"))
	})

	t.Run("Schema mismatch empties the index", func(t *testing.T) {
		_, path := newManager(t, "v1.0.0", cache.FormatGob)
		var buf bytes.Buffer
		enc := gob.NewEncoder(&buf)
		require.NoError(t, enc.Encode(cache.Header{SchemaVersion: "0", ToolVersion: "v1.0.0"}))
		require.NoError(t, enc.Encode(map[string]cache.Entry{"a.blade.php": {ContentHash: "h", ConfigHash: "c", ToolVersion: "v1.0.0"}}))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		m := cache.NewFileManager(nil, "v1.0.0", cache.FormatGob)
		require.NoError(t, m.Load(path))
		assert.False(t, m.Check("a.blade.php", "h", "c"))
	})

	t.Run("Corrupt file is treated as empty", func(t *testing.T) {
		m, path := newManager(t, "v1.0.0", cache.FormatJSON)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		require.NoError(t, m.Load(path))
		assert.False(t, m.Check("a.blade.php", "h", "c"))
	})

	t.Run("Unreadable path returns ErrLoad", func(t *testing.T) {
		m, _ := newManager(t, "v1.0.0", cache.FormatGob)
		dir := t.TempDir()
		err := m.Load(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, cache.ErrLoad)
	})
}

func TestManager_PersistEmptyRemovesFile(t *testing.T) {
	m, path := newManager(t, "v1.0.0", cache.FormatGob)
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, m.Persist(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_ConcurrentUpdates(t *testing.T) {
	m, path := newManager(t, "v1.0.0", cache.FormatGob)
	require.NoError(t, m.Load(path))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("f%d.blade.php", i)
			assert.NoError(t, m.Update(name, "h", "c"))
			assert.True(t, m.Check(name, "h", "c"))
		}(i)
	}
	wg.Wait()
	require.NoError(t, m.Persist(path))
}

// Package cache remembers which templates are already formatted so that unchanged
// files do not pay for another external formatter invocation.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/stackvity/blade-formatter/pkg/util"
)

// SchemaVersion is the version of the on-disk layout. Bump it when Entry or the
// file framing changes incompatibly.
const SchemaVersion = "1"

// Serialization formats for the index file.
const (
	FormatGob     = "gob"
	FormatJSON    = "json"
	DefaultFormat = FormatGob
)

var (
	// ErrLoad indicates the index file exists but could not be opened. Decode problems
	// are not reported; a corrupt or stale index is treated as empty.
	ErrLoad = errors.New("failed to load cache index")

	// ErrPersist indicates the index could not be written back to disk.
	ErrPersist = errors.New("failed to persist cache index")
)

// Entry records that a file whose content hashed to ContentHash was already the output
// of formatting under ConfigHash.
type Entry struct {
	ContentHash string `json:"contentHash"`
	ConfigHash  string `json:"configHash"`
	ToolVersion string `json:"toolVersion"`
}

// Header precedes the index in the cache file.
type Header struct {
	SchemaVersion string `json:"schemaVersion"`
	ToolVersion   string `json:"toolVersion"`
}

type jsonFile struct {
	Header Header           `json:"header"`
	Index  map[string]Entry `json:"index"`
}

// Manager is the cache contract used by the file processor. Check and Update are
// called concurrently from workers.
type Manager interface {
	Load(path string) error
	Check(filePath, contentHash, configHash string) bool
	Update(filePath, contentHash, configHash string) error
	Persist(path string) error
}

type fileManager struct {
	mu          sync.RWMutex
	index       map[string]Entry
	logger      *slog.Logger
	toolVersion string
	format      string
}

// NewFileManager returns a Manager backed by a single index file in gob or json format.
func NewFileManager(loggerHandler slog.Handler, toolVersion, format string) Manager {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatJSON && format != FormatGob {
		format = DefaultFormat
	}
	if toolVersion == "" {
		toolVersion = "dev"
	}
	return &fileManager{
		index: make(map[string]Entry),
		logger: slog.New(loggerHandler).With(
			slog.String("component", "cache"),
			slog.String("format", format),
		),
		toolVersion: toolVersion,
		format:      format,
	}
}

func (m *fileManager) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]Entry)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("Cache file not found, starting empty", "path", path)
			return nil
		}
		return fmt.Errorf("%w: read %q: %w", ErrLoad, path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var (
		header Header
		index  map[string]Entry
	)
	switch m.format {
	case FormatJSON:
		var f jsonFile
		if err := json.Unmarshal(data, &f); err != nil {
			m.logger.Warn("Cache file is not valid json, ignoring it", "path", path, "error", err.Error())
			return nil
		}
		header, index = f.Header, f.Index
	default:
		dec := gob.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&header); err != nil {
			m.logger.Warn("Cache header could not be decoded, ignoring cache", "path", path, "error", err.Error())
			return nil
		}
		if err := dec.Decode(&index); err != nil && !errors.Is(err, io.EOF) {
			m.logger.Warn("Cache index could not be decoded, ignoring cache", "path", path, "error", err.Error())
			return nil
		}
	}

	if header.SchemaVersion != SchemaVersion {
		m.logger.Info("Cache schema changed, invalidating", "file", header.SchemaVersion, "want", SchemaVersion)
		return nil
	}
	if !versionsCompatible(header.ToolVersion, m.toolVersion) {
		m.logger.Info("Cache written by another version, invalidating", "file", header.ToolVersion, "want", m.toolVersion)
		return nil
	}
	if index != nil {
		m.index = index
	}
	m.logger.Debug("Cache loaded", "path", path, "entries", len(m.index))
	return nil
}

func (m *fileManager) Check(filePath, contentHash, configHash string) bool {
	m.mu.RLock()
	entry, ok := m.index[filePath]
	m.mu.RUnlock()

	switch {
	case !ok:
		m.logger.Debug("Cache miss", "path", filePath, "reason", "no entry")
		return false
	case entry.ConfigHash != configHash:
		m.logger.Debug("Cache miss", "path", filePath, "reason", "config changed")
		return false
	case entry.ContentHash != contentHash:
		m.logger.Debug("Cache miss", "path", filePath, "reason", "content changed")
		return false
	case !versionsCompatible(entry.ToolVersion, m.toolVersion):
		m.logger.Debug("Cache miss", "path", filePath, "reason", "tool version")
		return false
	}
	m.logger.Debug("Cache hit", "path", filePath)
	return true
}

func (m *fileManager) Update(filePath, contentHash, configHash string) error {
	m.mu.Lock()
	m.index[filePath] = Entry{
		ContentHash: contentHash,
		ConfigHash:  configHash,
		ToolVersion: m.toolVersion,
	}
	m.mu.Unlock()
	return nil
}

func (m *fileManager) Persist(path string) error {
	m.mu.RLock()
	index := make(map[string]Entry, len(m.index))
	for k, v := range m.index {
		index[k] = v
	}
	m.mu.RUnlock()

	if len(index) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("Failed to remove empty cache file", "path", path, "error", err.Error())
		}
		return nil
	}

	header := Header{SchemaVersion: SchemaVersion, ToolVersion: m.toolVersion}
	var buf bytes.Buffer
	switch m.format {
	case FormatJSON:
		data, err := json.MarshalIndent(jsonFile{Header: header, Index: index}, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: encode json: %w", ErrPersist, err)
		}
		buf.Write(data)
	default:
		enc := gob.NewEncoder(&buf)
		if err := enc.Encode(header); err != nil {
			return fmt.Errorf("%w: encode header: %w", ErrPersist, err)
		}
		if err := enc.Encode(index); err != nil {
			return fmt.Errorf("%w: encode index: %w", ErrPersist, err)
		}
	}

	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	m.logger.Debug("Cache persisted", "path", path, "entries", len(index))
	return nil
}

// A "dev" build on either side accepts the other; release builds must match exactly.
func versionsCompatible(a, b string) bool {
	return a == b || a == "dev" || b == "dev"
}

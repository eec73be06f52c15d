// Package testutil provides testify mocks for the interfaces injected into
// pkg/formatter through Options, plus small filesystem helpers for tests.
package testutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stackvity/blade-formatter/pkg/formatter"
	"github.com/stackvity/blade-formatter/pkg/formatter/php"
)

// MockCacheManager mocks cache.Manager.
type MockCacheManager struct {
	mock.Mock
}

func (m *MockCacheManager) Load(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockCacheManager) Check(filePath, contentHash, configHash string) bool {
	args := m.Called(filePath, contentHash, configHash)
	hit, _ := args.Get(0).(bool)
	return hit
}

func (m *MockCacheManager) Update(filePath, contentHash, configHash string) error {
	args := m.Called(filePath, contentHash, configHash)
	return args.Error(0)
}

func (m *MockCacheManager) Persist(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// MockLanguageDetector mocks language.Detector.
type MockLanguageDetector struct {
	mock.Mock
}

func (m *MockLanguageDetector) Detect(content []byte, filePath string) (lang string, confidence float64, err error) {
	args := m.Called(content, filePath)
	lang, _ = args.Get(0).(string)
	confidence, _ = args.Get(1).(float64)
	err = args.Error(2)
	return
}

// MockEncodingHandler mocks encoding.Handler.
type MockEncodingHandler struct {
	mock.Mock
}

func (m *MockEncodingHandler) DetectAndDecode(content []byte) (utf8Content []byte, name string, certain bool, err error) {
	args := m.Called(content)
	utf8Content, _ = args.Get(0).([]byte)
	name, _ = args.Get(1).(string)
	certain, _ = args.Get(2).(bool)
	err = args.Error(3)
	return
}

func (m *MockEncodingHandler) Encode(content []byte, name string) ([]byte, error) {
	args := m.Called(content, name)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func (m *MockEncodingHandler) IsBinary(content []byte) bool {
	args := m.Called(content)
	isBinary, _ := args.Get(0).(bool)
	return isBinary
}

// MockGitClient mocks git.Client.
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) ChangedFiles(ctx context.Context, repoPath, mode, ref string) (files []string, err error) {
	args := m.Called(ctx, repoPath, mode, ref)
	files, _ = args.Get(0).([]string)
	err = args.Error(1)
	return
}

// MockPHPFormatter mocks php.Formatter. Return values may be a string or a
// func(string) string applied to the source.
type MockPHPFormatter struct {
	mock.Mock
}

func (m *MockPHPFormatter) Format(ctx context.Context, source string, opts php.Options) (string, error) {
	args := m.Called(ctx, source, opts)
	switch v := args.Get(0).(type) {
	case func(string) string:
		return v(source), args.Error(1)
	case string:
		return v, args.Error(1)
	}
	return "", args.Error(1)
}

// MockDiffSink mocks formatter.DiffSink.
type MockDiffSink struct {
	mock.Mock
}

func (m *MockDiffSink) WriteDiffs(diffs []formatter.LineDiff) error {
	args := m.Called(diffs)
	return args.Error(0)
}

// MockHooks mocks formatter.Hooks. Tests that record state from the callbacks must
// synchronize it themselves; hooks are called from several goroutines.
type MockHooks struct {
	mock.Mock
}

func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockHooks) OnFileStatusUpdate(path string, status formatter.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

func (m *MockHooks) OnRunComplete(report formatter.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockLoggerHandler mocks slog.Handler. A text handler over a buffer is usually the
// better choice; use this only to assert on handler interaction.
type MockLoggerHandler struct {
	mock.Mock
}

func (m *MockLoggerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	args := m.Called(ctx, level)
	enabled, _ := args.Get(0).(bool)
	return enabled
}

func (m *MockLoggerHandler) Handle(ctx context.Context, r slog.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockLoggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	args := m.Called(attrs)
	if h, ok := args.Get(0).(slog.Handler); ok && h != nil {
		return h
	}
	return m
}

func (m *MockLoggerHandler) WithGroup(name string) slog.Handler {
	args := m.Called(name)
	if h, ok := args.Get(0).(slog.Handler); ok && h != nil {
		return h
	}
	return m
}

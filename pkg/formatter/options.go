package formatter

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stackvity/blade-formatter/pkg/formatter/cache"
	"github.com/stackvity/blade-formatter/pkg/formatter/encoding"
	"github.com/stackvity/blade-formatter/pkg/formatter/git"
	"github.com/stackvity/blade-formatter/pkg/formatter/language"
	"github.com/stackvity/blade-formatter/pkg/formatter/php"
)

// GitConfig holds settings related to git-restricted runs.
type GitConfig struct {
	DiffOnly bool   `mapstructure:"diffOnly"`
	SinceRef string `mapstructure:"sinceRef"`
}

// Hooks receives progress callbacks. Implementations MUST be thread-safe; the
// walker and every worker call them concurrently.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks ignores every callback.
type NoOpHooks struct{}

func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// NoOpCacheManager never hits and stores nothing. It is used when caching is disabled.
type NoOpCacheManager struct{}

func (c *NoOpCacheManager) Load(path string) error { return nil }

func (c *NoOpCacheManager) Check(filePath, contentHash, configHash string) bool { return false }

func (c *NoOpCacheManager) Update(filePath, contentHash, configHash string) error { return nil }

func (c *NoOpCacheManager) Persist(path string) error { return nil }

// ProcessorFactory creates the FileProcessor shared by all workers.
type ProcessorFactory func(
	opts *Options,
	loggerHandler slog.Handler,
	fmtr *Formatter,
	cacheMgr cache.Manager,
) *FileProcessor

// WalkerFactory creates the Walker that feeds workerChan.
type WalkerFactory func(
	opts *Options,
	workerChan chan<- string,
	loggerHandler slog.Handler,
) (*Walker, error)

// Options holds everything a FormatFiles run needs.
type Options struct {
	// Files or directories to format. Relative entries are resolved against WorkDir.
	Paths []string `mapstructure:"-"`
	// Directory that relative paths, ignore files and the cache are anchored to.
	WorkDir string `mapstructure:"-"`

	AppVersion     string `mapstructure:"-"` // used to invalidate the cache across releases
	ConfigFilePath string `mapstructure:"-"`
	ProfileName    string `mapstructure:"-"`

	Mode         Mode         `mapstructure:"mode"`
	OnErrorMode  OnErrorMode  `mapstructure:"onError"`
	Verbose      bool         `mapstructure:"verbose"`
	TuiEnabled   bool         `mapstructure:"tuiEnabled"`
	OutputFormat OutputFormat `mapstructure:"outputFormat"`

	Concurrency     int    `mapstructure:"concurrency"`
	CacheEnabled    bool   `mapstructure:"cache"`
	CacheFormat     string `mapstructure:"cacheFormat"`
	IgnoreCacheRead bool   `mapstructure:"-"`
	ClearCache      bool   `mapstructure:"-"`
	CacheFilePath   string `mapstructure:"-"`

	Extensions      []string `mapstructure:"extensions"`
	IgnorePatterns  []string `mapstructure:"ignore"`
	UseGitignore    bool     `mapstructure:"gitignore"`
	MaxFileSizeMB   int64    `mapstructure:"maxFileSizeMB"`
	DefaultEncoding string   `mapstructure:"defaultEncoding"`
	// Keys are extensions and contain dots, so the config layer reads this map raw.
	LanguageMappingsOverride map[string]string `mapstructure:"-"`

	// Output-affecting formatter settings.
	Format Config `mapstructure:"format"`

	GitDiffMode GitDiffMode `mapstructure:"-"`
	GitConfig   GitConfig   `mapstructure:"git"`
	// Absolute paths of changed files. Resolved through GitClient when nil.
	GitChangedFiles map[string]struct{} `mapstructure:"-"`

	// Injected dependencies.
	EventHooks            Hooks             `mapstructure:"-"`
	Logger                slog.Handler      `mapstructure:"-"` // required
	PHPFormatter          php.Formatter     `mapstructure:"-"` // required
	Output                io.Writer         `mapstructure:"-"` // required in print mode
	DiffSink              DiffSink          `mapstructure:"-"` // required in diff mode
	GitClient             git.Client        `mapstructure:"-"`
	CacheManager          cache.Manager     `mapstructure:"-"`
	LanguageDetector      language.Detector `mapstructure:"-"`
	EncodingHandler       encoding.Handler  `mapstructure:"-"`
	ProcessorFactory      ProcessorFactory  `mapstructure:"-"`
	WalkerFactory         WalkerFactory     `mapstructure:"-"`
	DispatchWarnThreshold time.Duration     `mapstructure:"-"`
}

// lockedWriter serializes print-mode output so that concurrently formatted files do
// not interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

package formatter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/stackvity/blade-formatter/pkg/util"
)

// Walker resolves Options.Paths into individual template files, applies ignore rules
// and the git filter, and dispatches absolute paths to the worker pool.
type Walker struct {
	opts                 *Options
	workerChan           chan<- string
	hooks                Hooks
	logger               *slog.Logger
	ignore               *ignoreMatcher
	extensions           []string
	gitFilter            map[string]struct{}
	seen                 map[string]struct{}
	dispatchWarnDuration time.Duration
}

// NewWalker creates a Walker. The returned Walker closes workerChan when StartWalk
// returns.
func NewWalker(opts *Options, workerChan chan<- string, loggerHandler slog.Handler) (*Walker, error) {
	logger := slog.New(loggerHandler).With(slog.String("component", "walker"))

	patterns := append(append([]string(nil), DefaultIgnorePatterns...), opts.IgnorePatterns...)
	matcher, err := newIgnoreMatcher(opts.WorkDir, patterns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ignore patterns: %w", err)
	}
	if opts.UseGitignore {
		if err := matcher.loadFile(filepath.Join(opts.WorkDir, GitignoreName)); err != nil {
			return nil, err
		}
	}
	logger.Debug("Ignore patterns loaded", slog.Int("count", len(matcher.patterns)))

	var gitFilter map[string]struct{}
	if opts.GitDiffMode == GitDiffModeDiffOnly || opts.GitDiffMode == GitDiffModeSince {
		gitFilter = opts.GitChangedFiles
		if gitFilter == nil {
			gitFilter = map[string]struct{}{}
		}
		logger.Debug("Git filter active", slog.String("mode", string(opts.GitDiffMode)), slog.Int("files", len(gitFilter)))
	}

	extensions := util.NormalizeExtensions(opts.Extensions)
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	warn := opts.DispatchWarnThreshold
	if warn <= 0 {
		warn = time.Second
	}

	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}

	return &Walker{
		opts:                 opts,
		workerChan:           workerChan,
		hooks:                hooks,
		logger:               logger,
		ignore:               matcher,
		extensions:           extensions,
		gitFilter:            gitFilter,
		seen:                 make(map[string]struct{}),
		dispatchWarnDuration: warn,
	}, nil
}

// StartWalk visits every path in Options.Paths. Explicit file arguments are
// dispatched regardless of extension; directories are searched for files with one of
// the configured extensions.
func (w *Walker) StartWalk(ctx context.Context) error {
	defer func() {
		close(w.workerChan)
		w.logger.Debug("Worker channel closed")
	}()

	for _, p := range w.opts.Paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(w.opts.WorkDir, abs)
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("%w: cannot access %q: %w", ErrReadFailed, p, err)
		}

		if !info.IsDir() {
			if err := w.visitFile(ctx, abs, true); err != nil {
				return err
			}
			continue
		}

		w.logger.Info("Walking directory", slog.String("path", abs))
		if err := filepath.WalkDir(abs, w.walkFunc(ctx, abs)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("Directory walk cancelled", slog.String("reason", err.Error()))
				return err
			}
			return fmt.Errorf("directory walk failed: %w", err)
		}
	}
	w.logger.Debug("Walk completed", slog.Int("dispatched", len(w.seen)))
	return nil
}

func (w *Walker) walkFunc(ctx context.Context, root string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			if path == root && os.IsPermission(err) {
				return fmt.Errorf("permission denied reading %q: %w", path, err)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			if path != root && w.ignored(path, true) {
				return filepath.SkipDir
			}
			if w.opts.UseGitignore && path != w.opts.WorkDir {
				if err := w.ignore.loadFile(filepath.Join(path, GitignoreName)); err != nil {
					w.logger.Warn("Could not read .gitignore", slog.String("dir", path), slog.String("error", err.Error()))
				}
			}
			return nil
		}

		if !util.HasExtension(path, w.extensions) {
			return nil
		}
		return w.visitFile(ctx, path, false)
	}
}

func (w *Walker) visitFile(ctx context.Context, absPath string, explicit bool) error {
	if _, dup := w.seen[absPath]; dup {
		return nil
	}
	rel := w.relative(absPath)

	if hookErr := w.hooks.OnFileDiscovered(rel); hookErr != nil {
		w.logger.Warn("OnFileDiscovered hook failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
	}

	if w.ignored(absPath, false) {
		return nil
	}
	if w.gitFilter != nil {
		if _, ok := w.gitFilter[absPath]; !ok {
			w.logger.Debug("Path excluded by git filter", slog.String("path", rel))
			w.updateStatus(rel, fmt.Sprintf("Excluded by git mode %s", w.opts.GitDiffMode))
			return nil
		}
	}

	w.seen[absPath] = struct{}{}
	w.logger.Debug("Dispatching file", slog.String("path", rel), slog.Bool("explicit", explicit))

	timer := time.NewTimer(w.dispatchWarnDuration)
	defer timer.Stop()
	select {
	case w.workerChan <- absPath:
	case <-timer.C:
		w.logger.Warn("Worker channel dispatch blocked", slog.String("path", rel), slog.Duration("threshold", w.dispatchWarnDuration))
		select {
		case w.workerChan <- absPath:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Walker) ignored(absPath string, isDir bool) bool {
	pattern, ok := w.ignore.match(absPath, isDir)
	if !ok {
		return false
	}
	rel := w.relative(absPath)
	w.logger.Debug("Path ignored", slog.String("path", rel), slog.Bool("isDir", isDir), slog.String("pattern", pattern))
	w.updateStatus(rel, "Ignored by pattern: "+pattern)
	return true
}

func (w *Walker) updateStatus(rel, msg string) {
	if hookErr := w.hooks.OnFileStatusUpdate(rel, StatusSkipped, msg, 0); hookErr != nil {
		w.logger.Warn("OnFileStatusUpdate hook failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
	}
}

func (w *Walker) relative(absPath string) string {
	return relativePath(w.opts.WorkDir, absPath)
}

// relativePath returns absPath relative to base with forward slashes, or absPath
// itself when it lies outside base.
func relativePath(base, absPath string) string {
	rel, err := filepath.Rel(base, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// ignoreMatcher evaluates gitignore-style patterns anchored at base. Later patterns
// take precedence over earlier ones, as in git.
type ignoreMatcher struct {
	base     string
	patterns []gitignore.Pattern
	sources  []string
	loaded   map[string]struct{}
	logger   *slog.Logger
}

func newIgnoreMatcher(base string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for %q: %w", base, err)
	}
	m := &ignoreMatcher{
		base:   absBase,
		loaded: make(map[string]struct{}),
		logger: logger.With(slog.String("component", "ignoreMatcher")),
	}
	m.add(configPatterns, nil)
	if err := m.loadFile(filepath.Join(absBase, IgnoreFileName)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ignoreMatcher) add(lines []string, domain []string) {
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(line, domain))
		m.sources = append(m.sources, line)
	}
}

// loadFile adds the patterns of an ignore file. A missing file is not an error, and
// each file is read at most once.
func (m *ignoreMatcher) loadFile(path string) error {
	if _, done := m.loaded[path]; done {
		return nil
	}
	m.loaded[path] = struct{}{}

	domain, ok := m.split(filepath.Dir(path))
	if !ok {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open ignore file %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file %s: %w", path, err)
	}
	m.add(lines, domain)
	m.logger.Debug("Loaded ignore file", slog.String("path", path), slog.Int("lines", len(lines)))
	return nil
}

// split returns the path components of absPath below base.
func (m *ignoreMatcher) split(absPath string) ([]string, bool) {
	rel, err := filepath.Rel(m.base, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}
	if rel == "." {
		return []string{}, true
	}
	return strings.Split(filepath.ToSlash(rel), "/"), true
}

// match reports whether absPath is excluded and by which pattern.
func (m *ignoreMatcher) match(absPath string, isDir bool) (string, bool) {
	parts, ok := m.split(absPath)
	if !ok || len(parts) == 0 {
		return "", false
	}
	for i := len(m.patterns) - 1; i >= 0; i-- {
		switch m.patterns[i].Match(parts, isDir) {
		case gitignore.Exclude:
			return m.sources[i], true
		case gitignore.Include:
			return "", false
		}
	}
	return "", false
}

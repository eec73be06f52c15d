package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stackvity/blade-formatter/pkg/formatter/cache"
	"github.com/stackvity/blade-formatter/pkg/formatter/git"
)

// Engine formats many files concurrently: a Walker feeds paths to a worker pool and
// an aggregator collects the per-file results into a Report.
type Engine struct {
	opts             *Options
	logger           *slog.Logger
	formatter        *Formatter
	cacheManager     cache.Manager
	processorFactory ProcessorFactory
	walkerFactory    WalkerFactory
	processor        *FileProcessor
	aggregator       *reportAggregator
	ctx              context.Context
	cancelFunc       context.CancelFunc
	concurrency      int
	totalScanned     atomic.Int64
	fatalOccurred    atomic.Bool
}

// NewEngine validates opts, resolves defaults and prepares the cache and git filter.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	fmtr, err := New(opts.PHPFormatter, opts.Format, opts.Logger)
	if err != nil {
		return nil, err
	}

	cacheMgr := resolveCache(&opts, logger)
	opts.CacheManager = cacheMgr

	if opts.GitDiffMode != GitDiffModeNone && opts.GitChangedFiles == nil {
		changed, err := loadChangedFiles(ctx, &opts, logger)
		if err != nil {
			return nil, err
		}
		opts.GitChangedFiles = changed
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", "count", concurrency)
	}

	processorFactory := opts.ProcessorFactory
	if processorFactory == nil {
		processorFactory = NewFileProcessor
	}
	walkerFactory := opts.WalkerFactory
	if walkerFactory == nil {
		walkerFactory = NewWalker
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)

	return &Engine{
		opts:             &opts,
		logger:           logger,
		formatter:        fmtr,
		cacheManager:     cacheMgr,
		processorFactory: processorFactory,
		walkerFactory:    walkerFactory,
		aggregator:       newReportAggregator(),
		ctx:              engineCtx,
		cancelFunc:       cancelFunc,
		concurrency:      concurrency,
	}, nil
}

func validateOptions(opts *Options) error {
	if opts.PHPFormatter == nil {
		return fmt.Errorf("%w: PHPFormatter cannot be nil", ErrConfigValidation)
	}
	if len(opts.Paths) == 0 {
		return fmt.Errorf("%w: at least one path is required", ErrConfigValidation)
	}
	if opts.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency cannot be negative", ErrConfigValidation)
	}

	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("%w: cannot determine working directory: %w", ErrConfigValidation, err)
		}
		opts.WorkDir = wd
	}
	abs, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return fmt.Errorf("%w: invalid working directory %q: %w", ErrConfigValidation, opts.WorkDir, err)
	}
	opts.WorkDir = abs

	if opts.Mode == "" {
		opts.Mode = DefaultMode
	}
	if !opts.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrConfigValidation, opts.Mode)
	}
	if opts.Mode == ModePrint && opts.Output == nil {
		return fmt.Errorf("%w: print mode requires an Output writer", ErrConfigValidation)
	}
	if opts.Mode == ModeDiff && opts.DiffSink == nil {
		return fmt.Errorf("%w: diff mode requires a DiffSink", ErrConfigValidation)
	}

	switch opts.OnErrorMode {
	case "":
		opts.OnErrorMode = DefaultOnErrorMode
	case OnErrorContinue, OnErrorStop:
	default:
		return fmt.Errorf("%w: unknown onError mode %q", ErrConfigValidation, opts.OnErrorMode)
	}

	switch opts.GitDiffMode {
	case "":
		opts.GitDiffMode = GitDiffModeNone
	case GitDiffModeNone, GitDiffModeDiffOnly:
	case GitDiffModeSince:
		if opts.GitConfig.SinceRef == "" {
			return fmt.Errorf("%w: git mode 'since' requires a reference", ErrConfigValidation)
		}
	default:
		return fmt.Errorf("%w: unknown git mode %q", ErrConfigValidation, opts.GitDiffMode)
	}
	if opts.GitDiffMode != GitDiffModeNone && opts.GitChangedFiles == nil && opts.GitClient == nil {
		return fmt.Errorf("%w: GitClient required for git mode %q", ErrConfigValidation, opts.GitDiffMode)
	}
	return nil
}

// resolveCache returns the cache manager for the run. Load failures degrade to a
// cache-less run rather than aborting.
func resolveCache(opts *Options, logger *slog.Logger) cache.Manager {
	if !opts.CacheEnabled {
		logger.Debug("Cache disabled")
		return &NoOpCacheManager{}
	}
	if opts.CacheFilePath == "" {
		opts.CacheFilePath = filepath.Join(opts.WorkDir, CacheFileName)
	}
	if opts.ClearCache {
		if err := os.Remove(opts.CacheFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to clear cache file", "path", opts.CacheFilePath, "error", err.Error())
		}
	}

	mgr := opts.CacheManager
	if mgr == nil {
		appVersion := opts.AppVersion
		if appVersion == "" {
			appVersion = "dev"
			logger.Warn("AppVersion not set, cache entries will not be tied to a release")
		}
		mgr = cache.NewFileManager(opts.Logger, appVersion, opts.CacheFormat)
	}

	if err := mgr.Load(opts.CacheFilePath); err != nil {
		logger.Error("Cache unavailable, continuing without it",
			slog.String("path", opts.CacheFilePath),
			slog.String("error", fmt.Errorf("%w: %w", ErrCacheLoad, err).Error()))
		opts.CacheEnabled = false
		return &NoOpCacheManager{}
	}
	return mgr
}

func loadChangedFiles(ctx context.Context, opts *Options, logger *slog.Logger) (map[string]struct{}, error) {
	mode := git.ModeDiffOnly
	if opts.GitDiffMode == GitDiffModeSince {
		mode = git.ModeSince
	}
	files, err := opts.GitClient.ChangedFiles(ctx, opts.WorkDir, mode, opts.GitConfig.SinceRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGitOperation, err)
	}
	changed := make(map[string]struct{}, len(files))
	for _, f := range files {
		changed[filepath.Clean(f)] = struct{}{}
	}
	logger.Debug("Git changed files loaded", slog.String("mode", mode), slog.Int("count", len(changed)))
	return changed, nil
}

// Run processes every discovered file and returns the report. The error is non-nil
// when the run was cancelled, stopped by a fatal error, or when check mode found
// unformatted files.
func (e *Engine) Run() (report Report, finalErr error) {
	startTime := time.Now()
	e.logger.Info("Starting format run",
		"mode", e.opts.Mode, "concurrency", e.concurrency, "cacheEnabled", e.opts.CacheEnabled)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered during engine run", "panicValue", r)
			e.fatalOccurred.Store(true)
			if finalErr == nil {
				finalErr = fmt.Errorf("panic during execution: %v", r)
			}
		}
		e.cancelFunc()

		if e.opts.CacheEnabled {
			if err := e.cacheManager.Persist(e.opts.CacheFilePath); err != nil {
				e.logger.Error("Failed to persist cache", slog.String("path", e.opts.CacheFilePath), slog.String("error", err.Error()))
				if finalErr == nil {
					finalErr = fmt.Errorf("%w: %w", ErrCacheWrite, err)
				}
			}
		}

		report = e.aggregator.getReport(e.opts, startTime, e.totalScanned.Load(), e.fatalOccurred.Load())
		if finalErr == nil && e.opts.Mode == ModeCheck && report.Summary.FormattedCount > 0 {
			finalErr = fmt.Errorf("%w: %d file(s) would be reformatted", ErrNotFormatted, report.Summary.FormattedCount)
		}

		e.logger.Info("Format run finished",
			slog.Duration("duration", time.Since(startTime)),
			slog.Int("formatted", report.Summary.FormattedCount),
			slog.Int("unchanged", report.Summary.UnchangedCount),
			slog.Int("cached", report.Summary.CachedCount),
			slog.Int("skipped", report.Summary.SkippedCount),
			slog.Int("errors", report.Summary.ErrorCount),
		)
		if hookErr := e.opts.EventHooks.OnRunComplete(report); hookErr != nil {
			e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
		}
	}()

	e.processor = e.processorFactory(e.opts, e.opts.Logger, e.formatter, e.cacheManager)

	workerChan := make(chan string, e.concurrency)
	resultsChan := make(chan any, e.concurrency)
	var wg sync.WaitGroup

	walker, err := e.walkerFactory(e.opts, workerChan, e.opts.Logger)
	if err != nil {
		e.fatalOccurred.Store(true)
		return Report{}, fmt.Errorf("walker initialization failed: %w", err)
	}

	e.startWorkers(&wg, workerChan, resultsChan)

	aggregatorDone := make(chan struct{})
	go e.aggregateResults(resultsChan, aggregatorDone)

	walkErr := walker.StartWalk(e.ctx)
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) && !errors.Is(walkErr, context.DeadlineExceeded) {
		e.logger.Error("Directory walk failed", slog.String("error", walkErr.Error()))
		e.fatalOccurred.Store(true)
		e.cancelFunc()
	}

	wg.Wait()
	close(resultsChan)
	<-aggregatorDone

	switch {
	case walkErr != nil && e.fatalOccurred.Load() && e.aggregator.getFirstFatalError() == nil:
		return Report{}, walkErr
	case e.fatalOccurred.Load():
		if first := e.aggregator.getFirstFatalError(); first != nil {
			return Report{}, fmt.Errorf("processing stopped due to fatal error: %w", first)
		}
		return Report{}, errors.New("processing stopped due to fatal error")
	case e.ctx.Err() != nil:
		e.logger.Info("Format run cancelled", slog.String("reason", e.ctx.Err().Error()))
		e.fatalOccurred.Store(true)
		return Report{}, e.ctx.Err()
	}
	return Report{}, nil
}

func (e *Engine) startWorkers(wg *sync.WaitGroup, workerChan <-chan string, resultsChan chan<- any) {
	e.logger.Debug("Starting worker pool", "count", e.concurrency)
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.processFilesWorker(wg, i, workerChan, resultsChan)
	}
}

func (e *Engine) processFilesWorker(wg *sync.WaitGroup, workerID int, workerChan <-chan string, resultsChan chan<- any) {
	wLogger := e.logger.With(slog.Int("workerID", workerID))
	defer func() {
		if r := recover(); r != nil {
			wLogger.Error("Panic recovered in worker", "panicValue", r)
			resultsChan <- ErrorInfo{Path: "unknown (panic)", Error: fmt.Sprintf("panic: %v", r), IsFatal: true}
			e.stop()
		}
		wg.Done()
	}()

	// Drain the channel even after cancellation so the walker never blocks on send.
	for absPath := range workerChan {
		if e.ctx.Err() != nil {
			continue
		}
		result, status, err := e.processor.ProcessFile(e.ctx, absPath)
		if err != nil {
			isFatal := status == StatusFailed && e.opts.OnErrorMode == OnErrorStop
			info, ok := result.(ErrorInfo)
			if !ok {
				info = ErrorInfo{Path: relativePath(e.opts.WorkDir, absPath), Error: err.Error()}
			}
			info.IsFatal = isFatal
			resultsChan <- info
			if isFatal {
				wLogger.Info("Fatal file error, stopping run", "path", info.Path, "error", err)
				e.stop()
			}
			continue
		}
		if result == nil {
			wLogger.Warn("Processor returned nil result and nil error", "path", absPath, "status", status)
			continue
		}
		resultsChan <- result
	}
	wLogger.Debug("Worker shutting down")
}

func (e *Engine) stop() {
	if e.fatalOccurred.CompareAndSwap(false, true) {
		e.cancelFunc()
	}
}

func (e *Engine) aggregateResults(resultsChan <-chan any, done chan<- struct{}) {
	defer close(done)
	var scanned int64
	for result := range resultsChan {
		scanned++
		switch r := result.(type) {
		case FileInfo:
			e.aggregator.addFile(r)
		case SkippedInfo:
			e.aggregator.addSkipped(r)
		case ErrorInfo:
			e.aggregator.addError(r)
		default:
			e.logger.Warn("Aggregator received unknown result type", "type", fmt.Sprintf("%T", result))
		}
	}
	e.totalScanned.Store(scanned)
}

// reportAggregator collects results from the workers.
type reportAggregator struct {
	mu      sync.Mutex
	files   []FileInfo
	skipped []SkippedInfo
	errors  []ErrorInfo
	counts  map[Status]int
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		files:   make([]FileInfo, 0, 128),
		skipped: make([]SkippedInfo, 0, 16),
		errors:  make([]ErrorInfo, 0, 8),
		counts:  make(map[Status]int),
	}
}

func (a *reportAggregator) addFile(info FileInfo) {
	a.mu.Lock()
	a.files = append(a.files, info)
	a.counts[info.Status]++
	a.mu.Unlock()
}

func (a *reportAggregator) addSkipped(info SkippedInfo) {
	a.mu.Lock()
	a.skipped = append(a.skipped, info)
	a.mu.Unlock()
}

func (a *reportAggregator) addError(info ErrorInfo) {
	a.mu.Lock()
	a.errors = append(a.errors, info)
	a.mu.Unlock()
}

func (a *reportAggregator) getFirstFatalError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.errors {
		if e.IsFatal {
			return fmt.Errorf("fatal error processing file '%s': %s", e.Path, e.Error)
		}
	}
	return nil
}

func (a *reportAggregator) getReport(opts *Options, startTime time.Time, totalScanned int64, fatal bool) Report {
	a.mu.Lock()
	files := append([]FileInfo(nil), a.files...)
	skipped := append([]SkippedInfo(nil), a.skipped...)
	errs := append([]ErrorInfo(nil), a.errors...)
	formatted, unchanged, cached := a.counts[StatusFormatted], a.counts[StatusUnchanged], a.counts[StatusCached]
	a.mu.Unlock()

	return Report{
		Summary: Summary{
			Paths:              opts.Paths,
			Mode:               opts.Mode,
			ProfileUsed:        opts.ProfileName,
			ConfigFilePath:     opts.ConfigFilePath,
			TotalFilesScanned:  int(totalScanned),
			FormattedCount:     formatted,
			UnchangedCount:     unchanged,
			CachedCount:        cached,
			SkippedCount:       len(skipped),
			ErrorCount:         len(errs),
			FatalErrorOccurred: fatal,
			DurationSeconds:    time.Since(startTime).Seconds(),
			CacheEnabled:       opts.CacheEnabled,
			Concurrency:        opts.Concurrency,
			Timestamp:          time.Now().UTC(),
			SchemaVersion:      ReportSchemaVersion,
		},
		Files:   files,
		Skipped: skipped,
		Errors:  errs,
	}
}

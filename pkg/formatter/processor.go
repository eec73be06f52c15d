package formatter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/stackvity/blade-formatter/pkg/formatter/cache"
	"github.com/stackvity/blade-formatter/pkg/formatter/encoding"
	"github.com/stackvity/blade-formatter/pkg/formatter/language"
	"github.com/stackvity/blade-formatter/pkg/util"
)

// FileProcessor runs one file through read, decode, format and the mode action.
// A single instance is shared by all workers.
type FileProcessor struct {
	opts            *Options
	logger          *slog.Logger
	formatter       *Formatter
	cacheManager    cache.Manager
	langDetector    language.Detector
	encodingHandler encoding.Handler
	hooks           Hooks
	output          io.Writer
	configHash      string
	maxSize         int64
}

// NewFileProcessor creates the processor used by Engine.
func NewFileProcessor(opts *Options, loggerHandler slog.Handler, fmtr *Formatter, cacheMgr cache.Manager) *FileProcessor {
	logger := slog.New(loggerHandler).With(slog.String("component", "processor"))

	configHash, err := calculateConfigHash(fmtr.Config(), opts.AppVersion)
	if err != nil {
		logger.Error("Failed to calculate config hash, cache disabled for this run", slog.String("error", err.Error()))
		configHash = ""
	}

	if cacheMgr == nil {
		cacheMgr = &NoOpCacheManager{}
	}
	langDet := opts.LanguageDetector
	if langDet == nil {
		langDet = language.NewEnryDetector(opts.LanguageMappingsOverride)
	}
	encHandler := opts.EncodingHandler
	if encHandler == nil {
		encHandler = encoding.NewCharsetHandler(opts.DefaultEncoding)
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	var out io.Writer
	if opts.Output != nil {
		out = &lockedWriter{w: opts.Output}
	}

	return &FileProcessor{
		opts:            opts,
		logger:          logger,
		formatter:       fmtr,
		cacheManager:    cacheMgr,
		langDetector:    langDet,
		encodingHandler: encHandler,
		hooks:           hooks,
		output:          out,
		configHash:      configHash,
		maxSize:         opts.MaxFileSizeMB * 1024 * 1024,
	}
}

// ProcessFile formats absPath according to Options.Mode. result is a FileInfo,
// SkippedInfo or ErrorInfo; err is non-nil exactly when result is an ErrorInfo.
func (p *FileProcessor) ProcessFile(ctx context.Context, absPath string) (result any, status Status, err error) {
	start := time.Now()
	relPath := relativePath(p.opts.WorkDir, absPath)
	logArgs := []any{slog.String("path", relPath)}

	p.notify(relPath, StatusProcessing, "", 0)

	defer func() {
		duration := time.Since(start)
		message := ""
		if err != nil {
			status = StatusFailed
			if _, ok := result.(ErrorInfo); !ok {
				result = ErrorInfo{Path: relPath, Error: err.Error(), IsFatal: p.opts.OnErrorMode == OnErrorStop}
			}
			message = err.Error()
		}
		if s, ok := result.(SkippedInfo); ok {
			message = s.Reason
		}
		level := slog.LevelDebug
		if status == StatusFailed {
			level = slog.LevelError
		}
		p.logger.Log(ctx, level, "Processed file",
			append(logArgs, slog.String("status", string(status)), slog.Duration("duration", duration), slog.String("message", message))...)
		p.notify(relPath, status, message, duration)
	}()

	if err := ctx.Err(); err != nil {
		return nil, StatusFailed, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("%w: stat %s: %w", ErrReadFailed, relPath, err)
	}
	if p.maxSize > 0 && info.Size() > p.maxSize {
		return SkippedInfo{
			Path:    relPath,
			Reason:  SkipReasonLarge,
			Details: fmt.Sprintf("%d bytes exceeds limit of %d", info.Size(), p.maxSize),
		}, StatusSkipped, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("%w: %s: %w", ErrReadFailed, relPath, err)
	}
	if len(raw) == 0 {
		return SkippedInfo{Path: relPath, Reason: SkipReasonEmpty}, StatusSkipped, nil
	}

	fileInfo := FileInfo{
		Path:        relPath,
		SizeBytes:   info.Size(),
		CacheStatus: CacheStatusDisabled,
	}
	sourceHash := hashBytes(raw)
	useCache := p.opts.CacheEnabled && p.configHash != ""

	// A hit means the bytes on disk are already formatter output. Print mode needs the
	// UTF-8 text regardless, so it always runs the pipeline.
	if useCache {
		fileInfo.CacheStatus = CacheStatusMiss
		if !p.opts.IgnoreCacheRead && p.opts.Mode != ModePrint && p.cacheManager.Check(relPath, sourceHash, p.configHash) {
			fileInfo.CacheStatus = CacheStatusHit
			fileInfo.Status = StatusCached
			fileInfo.DurationMs = time.Since(start).Milliseconds()
			return fileInfo, StatusCached, nil
		}
	}

	if p.encodingHandler.IsBinary(raw) {
		return SkippedInfo{Path: relPath, Reason: SkipReasonBinary}, StatusSkipped, nil
	}

	utf8Content, encName, certain, err := p.encodingHandler.DetectAndDecode(raw)
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("%w: %s: %w", ErrEncodingFailed, relPath, err)
	}
	fileInfo.Encoding = encName
	if !certain {
		p.logger.Debug("Encoding detection uncertain", append(logArgs, slog.String("encoding", encName))...)
	}

	lang, _, err := p.langDetector.Detect(utf8Content, absPath)
	if err != nil {
		p.logger.Warn("Language detection failed", append(logArgs, slog.String("error", err.Error()))...)
	}
	fileInfo.Language = lang
	if !language.IsTemplateLanguage(lang) {
		return SkippedInfo{
			Path:    relPath,
			Reason:  SkipReasonLanguage,
			Details: fmt.Sprintf("detected language %q", lang),
		}, StatusSkipped, nil
	}

	res, err := p.formatter.FormatWithResult(ctx, relPath, string(utf8Content))
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("%w: %s: %w", ErrFormatFailed, relPath, err)
	}
	fileInfo.Changed = res.Changed
	fileInfo.Status = StatusUnchanged
	if res.Changed {
		fileInfo.Status = StatusFormatted
	}

	// Hash of the bytes on disk once the mode action is done; only recorded when the
	// file ends up formatted.
	formattedHash := ""
	if !res.Changed {
		formattedHash = sourceHash
	}

	switch p.opts.Mode {
	case ModeWrite:
		if res.Changed {
			encoded, err := p.encodingHandler.Encode([]byte(res.Content), encName)
			if err != nil {
				return nil, StatusFailed, fmt.Errorf("%w: %s: %w", ErrEncodingFailed, relPath, err)
			}
			if err := util.WriteFileAtomic(absPath, encoded, info.Mode().Perm()); err != nil {
				return nil, StatusFailed, fmt.Errorf("%w: %s: %w", ErrWriteFailed, relPath, err)
			}
			formattedHash = hashBytes(encoded)
		}
	case ModeCheck:
		fileInfo.Diffs = res.Diffs
	case ModeDiff:
		fileInfo.Diffs = res.Diffs
		if res.Changed && p.opts.DiffSink != nil {
			if err := p.opts.DiffSink.WriteDiffs(res.Diffs); err != nil {
				p.logger.Warn("Diff sink failed", append(logArgs, slog.String("error", err.Error()))...)
			}
		}
	default:
		if p.output != nil {
			if _, err := io.WriteString(p.output, res.Content); err != nil {
				return nil, StatusFailed, fmt.Errorf("%w: write output for %s: %w", ErrWriteFailed, relPath, err)
			}
		}
	}

	if useCache && formattedHash != "" {
		if err := p.cacheManager.Update(relPath, formattedHash, p.configHash); err != nil {
			p.logger.Warn("Failed to update cache entry", append(logArgs, slog.String("error", err.Error()))...)
		}
	}

	fileInfo.DurationMs = time.Since(start).Milliseconds()
	return fileInfo, fileInfo.Status, nil
}

func (p *FileProcessor) notify(relPath string, status Status, message string, d time.Duration) {
	if hookErr := p.hooks.OnFileStatusUpdate(relPath, status, message, d); hookErr != nil {
		p.logger.Warn("OnFileStatusUpdate hook failed", slog.String("path", relPath), slog.String("error", hookErr.Error()))
	}
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// calculateConfigHash hashes everything that changes formatted output for a given
// input, so cache entries from a different configuration never hit.
func calculateConfigHash(cfg Config, appVersion string) (string, error) {
	data, err := json.Marshal(struct {
		Format  Config `json:"format"`
		Version string `json:"version"`
	}{cfg, appVersion})
	if err != nil {
		return "", fmt.Errorf("marshal config for hashing: %w", err)
	}
	return hashBytes(data), nil
}

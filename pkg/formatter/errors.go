package formatter

import "errors"

// Errors returned by FormatFiles or recorded per file in Report.Errors. Check them
// with errors.Is. Errors from the external formatter additionally match the sentinels
// of package php.
var (
	// ErrConfigValidation indicates invalid Options. It is returned before any file
	// is touched.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrCacheLoad indicates the cache index could not be read. The run continues
	// without the cache.
	ErrCacheLoad = errors.New("failed to load cache index")

	// ErrCacheWrite indicates the cache index could not be written back. Formatting
	// results are unaffected.
	ErrCacheWrite = errors.New("failed to persist cache index")

	// ErrReadFailed indicates a source file could not be read or stat'ed.
	ErrReadFailed = errors.New("failed to read file")

	// ErrWriteFailed indicates a formatted file could not be written back in place.
	ErrWriteFailed = errors.New("failed to write file")

	// ErrEncodingFailed indicates a file could not be converted to or from UTF-8.
	ErrEncodingFailed = errors.New("failed to convert file encoding")

	// ErrFormatFailed wraps every error raised while running the pipeline on a file.
	ErrFormatFailed = errors.New("failed to format file")

	// ErrGitOperation indicates the git changed-files lookup failed.
	ErrGitOperation = errors.New("git operation failed")

	// ErrNotFormatted is returned in check mode when at least one file would change.
	ErrNotFormatted = errors.New("files are not formatted")
)

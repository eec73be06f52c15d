package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Report summarizes a FormatFiles run.
type Report struct {
	Summary Summary       `json:"summary" yaml:"summary"`
	Files   []FileInfo    `json:"files" yaml:"files"`
	Skipped []SkippedInfo `json:"skipped" yaml:"skipped"`
	Errors  []ErrorInfo   `json:"errors" yaml:"errors"`
}

// Summary holds the aggregated counts of a run.
type Summary struct {
	Paths              []string  `json:"paths" yaml:"paths"`
	Mode               Mode      `json:"mode" yaml:"mode"`
	ProfileUsed        string    `json:"profileUsed,omitempty" yaml:"profileUsed,omitempty"`
	ConfigFilePath     string    `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty"`
	TotalFilesScanned  int       `json:"totalFilesScanned" yaml:"totalFilesScanned"`
	FormattedCount     int       `json:"formattedCount" yaml:"formattedCount"`
	UnchangedCount     int       `json:"unchangedCount" yaml:"unchangedCount"`
	CachedCount        int       `json:"cachedCount" yaml:"cachedCount"`
	SkippedCount       int       `json:"skippedCount" yaml:"skippedCount"`
	ErrorCount         int       `json:"errorCount" yaml:"errorCount"`
	FatalErrorOccurred bool      `json:"fatalError" yaml:"fatalError"`
	DurationSeconds    float64   `json:"durationSeconds" yaml:"durationSeconds"`
	CacheEnabled       bool      `json:"cacheEnabled" yaml:"cacheEnabled"`
	Concurrency        int       `json:"concurrency" yaml:"concurrency"`
	Timestamp          time.Time `json:"timestamp" yaml:"timestamp"`
	SchemaVersion      string    `json:"schemaVersion" yaml:"schemaVersion"`
}

// FileInfo describes a file that went through the pipeline, or was recognised as
// already formatted through the cache.
type FileInfo struct {
	Path        string     `json:"path" yaml:"path"`
	Status      Status     `json:"status" yaml:"status"`
	Changed     bool       `json:"changed" yaml:"changed"`
	Language    string     `json:"language,omitempty" yaml:"language,omitempty"`
	Encoding    string     `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SizeBytes   int64      `json:"sizeBytes" yaml:"sizeBytes"`
	CacheStatus string     `json:"cacheStatus" yaml:"cacheStatus"`
	DurationMs  int64      `json:"durationMs" yaml:"durationMs"`
	Diffs       []LineDiff `json:"diffs,omitempty" yaml:"diffs,omitempty"`
}

// SkippedInfo describes a file that was deliberately not formatted.
type SkippedInfo struct {
	Path    string `json:"path" yaml:"path"`
	Reason  string `json:"reason" yaml:"reason"`
	Details string `json:"details" yaml:"details"`
}

// ErrorInfo describes a file that failed. IsFatal is set when the failure stopped
// the run (OnErrorMode "stop").
type ErrorInfo struct {
	Path    string `json:"path" yaml:"path"`
	Error   string `json:"error" yaml:"error"`
	IsFatal bool   `json:"isFatal" yaml:"isFatal"`
}

// WriteReport renders r to w in the given format.
func WriteReport(w io.Writer, r Report, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report to json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputFormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report to yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case OutputFormatText, "":
		return writeTextSummary(w, r.Summary)
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrConfigValidation, format)
	}
}

func writeTextSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w,
		"Formatted: %d, unchanged: %d, cached: %d, skipped: %d, errors: %d (%.2fs)\n",
		s.FormattedCount, s.UnchangedCount, s.CachedCount, s.SkippedCount, s.ErrorCount, s.DurationSeconds,
	)
	return err
}

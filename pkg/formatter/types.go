package formatter

// Status is the processing state of a file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFormatted  Status = "formatted" // formatter output differs from the file
	StatusUnchanged  Status = "unchanged"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusCached     Status = "cached" // known to be formatted, formatter not run
)

// Mode selects what happens with formatted output.
type Mode string

const (
	ModePrint Mode = "print" // formatted text to Options.Output
	ModeWrite Mode = "write" // rewrite changed files in place
	ModeCheck Mode = "check" // fail if any file would change
	ModeDiff  Mode = "diff"  // report changed lines to Options.DiffSink
)

// OnErrorMode defines the behavior when a file fails to format.
type OnErrorMode string

const (
	OnErrorContinue OnErrorMode = "continue"
	OnErrorStop     OnErrorMode = "stop"
)

// OutputFormat selects how the run report is rendered.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// GitDiffMode restricts a run to files changed according to git.
type GitDiffMode string

const (
	GitDiffModeNone     GitDiffMode = "none"
	GitDiffModeDiffOnly GitDiffMode = "diffOnly"
	GitDiffModeSince    GitDiffMode = "since"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePrint, ModeWrite, ModeCheck, ModeDiff:
		return true
	}
	return false
}

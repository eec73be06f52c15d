// Package cli runs a formatting session for the command line: it builds the external
// formatter, the git client and the progress output around formatter.FormatFiles.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/stackvity/blade-formatter/internal/cli/config"
	"github.com/stackvity/blade-formatter/internal/cli/git"
	"github.com/stackvity/blade-formatter/internal/cli/hooks"
	"github.com/stackvity/blade-formatter/internal/cli/runner"
	"github.com/stackvity/blade-formatter/internal/cli/ui"
	"github.com/stackvity/blade-formatter/pkg/formatter"
)

// Run formats the configured paths. Formatted text and diffs go to stdout; the
// progress legend and the report go to stdout in write and check mode and to stderr
// otherwise. The returned error is non-nil when any file failed, when check mode
// found unformatted files, or when the run could not start.
func Run(ctx context.Context, settings config.Settings, logger *slog.Logger, stdout, stderr io.Writer) (formatter.Report, error) {
	opts := settings.Options

	phpFormatter, err := runner.NewExecFormatter(opts.Logger, settings.Runner)
	if err != nil {
		return formatter.Report{}, err
	}
	opts.PHPFormatter = phpFormatter

	if opts.GitDiffMode != formatter.GitDiffModeNone {
		opts.GitClient = git.NewGoGitClient(opts.Logger)
	}

	switch opts.Mode {
	case formatter.ModePrint:
		opts.Output = stdout
	case formatter.ModeDiff:
		printer, err := hooks.NewDiffPrinter(stdout, settings.DiffHeader)
		if err != nil {
			return formatter.Report{}, fmt.Errorf("%w: invalid diff header %q: %w", formatter.ErrConfigValidation, settings.DiffHeader, err)
		}
		opts.DiffSink = printer
	}

	status := statusWriter(opts.Mode, stdout, stderr)
	var legend io.Writer
	if opts.OutputFormat == formatter.OutputFormatText && status == stdout {
		legend = stdout
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tuiEnabled := opts.TuiEnabled && !opts.Verbose && status == stdout && isTerminal(stderr)
	var program *tea.Program
	tuiDone := make(chan error, 1)
	if tuiEnabled {
		program = tea.NewProgram(ui.NewModel(opts.AppVersion), tea.WithOutput(stderr), tea.WithContext(runCtx))
		go func() {
			_, err := program.Run()
			// Leaving the TUI early stops the run.
			cancel()
			tuiDone <- err
		}()
	}

	var tuiProg hooks.TUIProgram
	if program != nil {
		tuiProg = program
	}
	opts.EventHooks = hooks.NewCLIHooks(logger, tuiEnabled, opts.Verbose, tuiProg, legend)

	report, runErr := formatter.FormatFiles(runCtx, opts)

	if program != nil {
		program.Quit()
		if err := <-tuiDone; err != nil && ctx.Err() == nil {
			logger.Debug("TUI exited with error", slog.String("error", err.Error()))
		}
	}

	if runErr == nil || report.Summary.TotalFilesScanned > 0 {
		if err := formatter.WriteReport(status, report, opts.OutputFormat); err != nil {
			logger.Error("Failed to write report", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		return report, runErr
	}
	if report.Summary.ErrorCount > 0 {
		return report, fmt.Errorf("%w: %d file(s) could not be formatted", formatter.ErrFormatFailed, report.Summary.ErrorCount)
	}
	return report, nil
}

// statusWriter picks the stream for progress and the report. In print and diff mode
// stdout carries the formatted output.
func statusWriter(mode formatter.Mode, stdout, stderr io.Writer) io.Writer {
	if mode == formatter.ModePrint || mode == formatter.ModeDiff {
		return stderr
	}
	return stdout
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

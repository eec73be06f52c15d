// Package runner runs the external PHP formatter as a child process.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/stackvity/blade-formatter/pkg/formatter/php"
)

const (
	// maxLogOutputBytes limits how much stderr is attached to log records.
	maxLogOutputBytes = 1024
	// maxReadBytes caps formatter stdout and stderr.
	maxReadBytes = 10 * 1024 * 1024

	// waitDelay is how long Wait waits for the output pipes after the process was killed.
	waitDelay = 2 * time.Second

	// syntaxErrorExitCode is what prettier exits with when it cannot parse its input.
	syntaxErrorExitCode = 2
)

// DefaultCommand is the formatter executable with its fixed leading arguments.
var DefaultCommand = []string{"prettier"}

// DefaultArgs are appended to the command. Each argument is a template expanded with
// the tags {parser}, {printWidth}, {singleQuote} and {phpVersion}.
var DefaultArgs = []string{
	"--plugin=@prettier/plugin-php",
	"--parser={parser}",
	"--print-width={printWidth}",
	"--single-quote={singleQuote}",
	"--php-version={phpVersion}",
}

// Config configures the process-backed formatter.
type Config struct {
	Command []string
	Args    []string
	// Timeout bounds a single invocation; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

type execFormatter struct {
	logger  *slog.Logger
	command []string
	args    []*fasttemplate.Template
	timeout time.Duration
}

// NewExecFormatter returns a php.Formatter that pipes source through an external command
// on stdin and reads the formatted result from stdout.
func NewExecFormatter(loggerHandler slog.Handler, cfg Config) (php.Formatter, error) {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	if strings.TrimSpace(command[0]) == "" {
		return nil, php.Errorf("formatter command cannot be empty")
	}
	argTemplates := cfg.Args
	if argTemplates == nil {
		argTemplates = DefaultArgs
	}

	args := make([]*fasttemplate.Template, len(argTemplates))
	for i, a := range argTemplates {
		tpl, err := fasttemplate.NewTemplate(a, "{", "}")
		if err != nil {
			return nil, php.Errorf("invalid argument template %q: %w", a, err)
		}
		args[i] = tpl
	}

	return &execFormatter{
		logger:  slog.New(loggerHandler).With(slog.String("component", "formatterRunner")),
		command: command,
		args:    args,
		timeout: cfg.Timeout,
	}, nil
}

// expandArgs renders the argument templates for opts.
func (f *execFormatter) expandArgs(opts php.Options) []string {
	values := map[string]any{
		"parser":      opts.Parser,
		"printWidth":  strconv.Itoa(opts.PrintWidth),
		"singleQuote": strconv.FormatBool(opts.SingleQuote),
		"phpVersion":  opts.PHPVersion,
	}
	out := make([]string, 0, len(f.command)-1+len(f.args))
	out = append(out, f.command[1:]...)
	for _, tpl := range f.args {
		out = append(out, tpl.ExecuteString(values))
	}
	return out
}

func (f *execFormatter) Format(ctx context.Context, source string, opts php.Options) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := f.expandArgs(opts)
	logArgs := []any{slog.String("command", f.command[0]), slog.String("parser", opts.Parser)}

	stdout := &cappedBuffer{limit: maxReadBytes}
	stderr := &cappedBuffer{limit: maxReadBytes}
	cmd := exec.CommandContext(ctx, f.command[0], args...)
	cmd.Stdin = strings.NewReader(source)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Children that inherited the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = waitDelay

	f.logger.Debug("Running formatter", append(logArgs, slog.Int("bytes", len(source)))...)
	if err := cmd.Start(); err != nil {
		f.logger.Error("Failed to start formatter", append(logArgs, slog.String("args", strings.Join(args, " ")), slog.Any("error", err))...)
		return "", php.Errorf("start %s: %w", f.command[0], err)
	}
	waitErr := cmd.Wait()
	stderrText := strings.TrimSpace(stderr.String())
	if stderrText != "" {
		logArgs = append(logArgs, slog.String("stderr", truncate(stderrText, maxLogOutputBytes)))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		f.logger.Error("Formatter cancelled or timed out", append(logArgs, slog.Any("error", ctxErr))...)
		return "", php.WrapError(php.ErrTimeout, "%s", ctxErr.Error())
	}

	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		f.logger.Debug("Formatter exited with error", append(logArgs, slog.Int("exitCode", exitCode))...)
		if exitCode == syntaxErrorExitCode || strings.Contains(stderrText, "SyntaxError") {
			return "", php.WrapError(php.ErrSyntax, "%s", firstLine(stderrText))
		}
		return "", php.Errorf("%s exited with code %d: %s", f.command[0], exitCode, firstLine(stderrText))
	}

	if stdout.exceeded {
		return "", php.WrapError(php.ErrBadOutput, "formatter output exceeded %d bytes", maxReadBytes)
	}
	if stdout.Len() == 0 && strings.TrimSpace(source) != "" {
		return "", php.WrapError(php.ErrBadOutput, "formatter returned no output")
	}

	return stdout.String(), nil
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	exceeded bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); len(p) > room {
		b.exceeded = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no error output"
	}
	return s
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("... (%d bytes truncated)", len(s)-limit)
}

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/internal/cli/config"
	"github.com/stackvity/blade-formatter/internal/cli/runner"
	"github.com/stackvity/blade-formatter/internal/testutil"
	"github.com/stackvity/blade-formatter/pkg/formatter"
)

const (
	unformatted = "@if($a==1)\n<p>{{$name}}</p>\n@endif\n"
	formatted   = "@if($a == 1)\n<p>{{ $name }}</p>\n@endif\n"
)

// spacingScript stands in for prettier: it normalizes the spacing around "==".
func spacingScript(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script formatters are not supported on Windows")
	}
	path := filepath.Join(t.TempDir(), "fmt.sh")
	script := "#!/bin/sh\nsed 's/[[:space:]]*==[[:space:]]*/ == /g'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newSettings(t *testing.T, mode formatter.Mode, script string) (config.Settings, string) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"views/home.blade.php": unformatted,
	})
	handler, _ := testutil.NewTestLogger()
	return config.Settings{
		Options: formatter.Options{
			Paths:                    []string{"views"},
			WorkDir:                  root,
			AppVersion:               "1.0.0",
			Mode:                     mode,
			OnErrorMode:              formatter.OnErrorContinue,
			OutputFormat:             formatter.OutputFormatText,
			Concurrency:              1,
			Format:                   formatter.DefaultConfig(),
			LanguageMappingsOverride: map[string]string{".blade.php": "blade"},
			Logger:                   handler,
		},
		Runner: runner.Config{Command: []string{script}, Args: []string{}},
	}, root
}

func run(t *testing.T, settings config.Settings) (formatter.Report, string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	handler, _ := testutil.NewTestLogger()
	report, err := Run(context.Background(), settings, slog.New(handler), stdout, stderr)
	return report, stdout.String(), stderr.String(), err
}

func TestRun_Print(t *testing.T) {
	settings, root := newSettings(t, formatter.ModePrint, spacingScript(t))

	report, stdout, stderr, err := run(t, settings)
	require.NoError(t, err)
	assert.Equal(t, formatted, stdout)
	assert.Contains(t, stderr, "Formatted: 1, unchanged: 0")
	assert.Equal(t, 1, report.Summary.FormattedCount)
	assert.Equal(t, unformatted, testutil.ReadFile(t, filepath.Join(root, "views", "home.blade.php")))
}

func TestRun_WriteThenCheck(t *testing.T) {
	script := spacingScript(t)
	settings, root := newSettings(t, formatter.ModeCheck, script)

	_, stdout, _, err := run(t, settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.ErrNotFormatted)
	assert.Contains(t, stdout, "F\n\nFixed: F\n")

	settings.Options.Mode = formatter.ModeWrite
	_, stdout, _, err = run(t, settings)
	require.NoError(t, err)
	assert.Equal(t, formatted, testutil.ReadFile(t, filepath.Join(root, "views", "home.blade.php")))
	assert.Contains(t, stdout, "Formatted: 1")

	settings.Options.Mode = formatter.ModeCheck
	_, stdout, _, err = run(t, settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, ".\n\nFixed: F\n")
}

func TestRun_Diff(t *testing.T) {
	settings, _ := newSettings(t, formatter.ModeDiff, spacingScript(t))
	settings.DiffHeader = "{path}:{line}"

	_, stdout, _, err := run(t, settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, "views/home.blade.php:1\n--@if($a==1)\n++@if($a == 1)\n")
	assert.Contains(t, stdout, ":2\n--<p>{{$name}}</p>\n++<p>{{ $name }}</p>\n")
}

func TestRun_JSONReport(t *testing.T) {
	settings, _ := newSettings(t, formatter.ModeWrite, spacingScript(t))
	settings.Options.OutputFormat = formatter.OutputFormatJSON

	_, stdout, _, err := run(t, settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"formattedCount": 1`)
	assert.NotContains(t, stdout, "Fixed: F", "no legend next to a machine report")
}

func TestRun_FormatterFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script formatters are not supported on Windows")
	}
	script := filepath.Join(t.TempDir(), "broken.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\necho 'SyntaxError: nope' >&2\nexit 2\n"), 0o755))
	settings, _ := newSettings(t, formatter.ModeWrite, script)

	report, _, _, err := run(t, settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.ErrFormatFailed)
	assert.Equal(t, 1, report.Summary.ErrorCount)
}

func TestRun_InvalidDiffHeader(t *testing.T) {
	settings, _ := newSettings(t, formatter.ModeDiff, spacingScript(t))
	settings.DiffHeader = "{path"

	_, _, _, err := run(t, settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.ErrConfigValidation)
}

func TestStatusWriter(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	assert.Same(t, stderr, statusWriter(formatter.ModePrint, stdout, stderr))
	assert.Same(t, stderr, statusWriter(formatter.ModeDiff, stdout, stderr))
	assert.Same(t, stdout, statusWriter(formatter.ModeWrite, stdout, stderr))
	assert.Same(t, stdout, statusWriter(formatter.ModeCheck, stdout, stderr))
	assert.False(t, isTerminal(stdout))
}

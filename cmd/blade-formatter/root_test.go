package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/internal/testutil"
	"github.com/stackvity/blade-formatter/pkg/formatter"
)

// executeCommand runs root with args and captures its output.
func executeCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)

	err = root.Execute()

	return stdoutBuf.String(), stderrBuf.String(), err
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	stdout, stderr, err := executeCommand(cmd, "--help")

	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "blade-formatter [flags] <path>...")

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name, "help should list --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "help should list -%s", f.Shorthand)
		}
	})
}

func TestRootCmdVersion(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	version, commit, date = "test-1.2.3", "testcommit123", "2024-01-01T10:00:00Z"
	defer func() {
		version, commit, date = originalVersion, originalCommit, originalDate
	}()

	stdout, stderr, err := executeCommand(newRootCmd(), "--version")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, "blade-formatter version test-1.2.3 (commit: testcommit123, built: 2024-01-01T10:00:00Z)\n", stdout)
}

func TestRootCmdArgErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{name: "No paths", args: []string{}, errorMsg: "requires at least 1 arg(s)"},
		{name: "Unknown flag", args: []string{".", "--unknown-flag"}, errorMsg: "unknown flag: --unknown-flag"},
		{name: "Invalid int", args: []string{".", "--concurrency", "abc"}, errorMsg: `invalid argument "abc" for "-j, --concurrency" flag`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeCommand(newRootCmd(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorMsg)
		})
	}
}

func TestRootCmd_ConfigValidationError(t *testing.T) {
	testutil.Chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, _, err := executeCommand(newRootCmd(), ".", "--check", "--write")
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.ErrConfigValidation)
}

func TestRootCmd_CheckWriteCheck(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script formatters are not supported on Windows")
	}
	dir := t.TempDir()
	testutil.Chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	script := filepath.Join(t.TempDir(), "fmt.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsed 's/[[:space:]]*==[[:space:]]*/ == /g'\n"), 0o755))

	testutil.WriteTree(t, dir, map[string]string{
		".blade-formatter.yaml": "cache: false\ntuiEnabled: false\nformatter:\n  command: [\"" + script + "\"]\n  args: []\n",
		"views/home.blade.php":  "@if($a==1)\n<p>{{$name}}</p>\n@endif\n",
	})

	stdout, _, err := executeCommand(newRootCmd(), "--check", "views")
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.ErrNotFormatted)
	assert.Contains(t, stdout, "F")

	_, _, err = executeCommand(newRootCmd(), "--write", "views")
	require.NoError(t, err)
	assert.Equal(t, "@if($a == 1)\n<p>{{ $name }}</p>\n@endif\n", testutil.ReadFile(t, filepath.Join(dir, "views", "home.blade.php")))

	_, _, err = executeCommand(newRootCmd(), "--check", "views")
	require.NoError(t, err)
}

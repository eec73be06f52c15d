// Package git defines how the formatter asks version control which templates changed.
package git

import (
	"context"
	"errors"
	"fmt"
)

// ErrGitOperation indicates a failure while talking to the repository: no repository
// at the path, an unknown reference, or a backend error.
var ErrGitOperation = errors.New("git operation failed")

// Change modes understood by Client.ChangedFiles.
const (
	ModeDiffOnly = "diffOnly"
	ModeSince    = "since"
)

// Client lists files that differ from a reference state.
//
// Stability: Public Stable API - implementations can be provided externally.
type Client interface {
	// ChangedFiles returns absolute, cleaned paths of files changed in the repository
	// containing path. ModeDiffOnly reports staged and unstaged modifications of tracked
	// files; ModeSince reports files touched between ref and HEAD.
	// Errors wrap ErrGitOperation.
	ChangedFiles(ctx context.Context, path, mode, ref string) ([]string, error)
}

// Errorf returns a formatted error that wraps ErrGitOperation.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrGitOperation}, args...)...)
}

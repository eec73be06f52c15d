// Package git implements the formatter's git.Client on top of go-git.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	libgit "github.com/stackvity/blade-formatter/pkg/formatter/git"
)

// GoGitClient reads repository state in-process; no git binary is required.
type GoGitClient struct {
	logger *slog.Logger
}

// NewGoGitClient creates a new GoGitClient.
func NewGoGitClient(loggerHandler slog.Handler) libgit.Client {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "gitClient"), slog.String("backend", "go-git"))
	return &GoGitClient{logger: logger}
}

func (c *GoGitClient) openRepo(repoPath string) (*git.Repository, string, error) {
	absRepoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, "", libgit.Errorf("failed to get absolute path for repository '%s': %w", repoPath, err)
	}

	repo, err := git.PlainOpenWithOptions(absRepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, "", libgit.Errorf("repository not found at or above path '%s': %w", absRepoPath, err)
		}
		return nil, "", libgit.Errorf("failed to open repository at '%s': %w", absRepoPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, "", libgit.Errorf("failed to get worktree for repository '%s': %w", absRepoPath, err)
	}
	return repo, worktree.Filesystem.Root(), nil
}

func (c *GoGitClient) resolveRevision(repo *git.Repository, refName string) (*plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(refName))
	if err != nil {
		c.logger.Error("Failed to resolve revision", slog.String("ref", refName), slog.Any("error", err))
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, libgit.Errorf("invalid git reference '%s': %w", refName, err)
		}
		return nil, libgit.Errorf("could not resolve git reference '%s': %w", refName, err)
	}
	return hash, nil
}

// ChangedFiles implements git.Client. Paths are absolute and sorted.
func (c *GoGitClient) ChangedFiles(ctx context.Context, repoPath, mode, ref string) ([]string, error) {
	logArgs := []any{slog.String("repo", repoPath), slog.String("mode", mode), slog.String("ref", ref)}
	c.logger.Debug("Getting changed files", logArgs...)

	var rel []string
	var root string
	var err error
	switch mode {
	case libgit.ModeDiffOnly:
		rel, root, err = c.worktreeChanges(ctx, repoPath)
	case libgit.ModeSince:
		if ref == "" {
			return nil, libgit.Errorf("git diff mode 'since' requires a non-empty reference")
		}
		rel, root, err = c.changesSince(ctx, repoPath, ref)
	default:
		return nil, libgit.Errorf("unsupported git diff mode: %s", mode)
	}
	if err != nil {
		c.logger.Error("Failed to list changed files", append(logArgs, slog.Any("error", err))...)
		return nil, err
	}

	files := make([]string, 0, len(rel))
	for _, p := range rel {
		files = append(files, filepath.Join(root, filepath.FromSlash(p)))
	}
	sort.Strings(files)
	c.logger.Debug("Found changed files", append(logArgs, slog.Int("count", len(files)))...)
	return files, nil
}

// worktreeChanges lists staged and unstaged changes of tracked files. Untracked files
// are left out.
func (c *GoGitClient) worktreeChanges(ctx context.Context, repoPath string) ([]string, string, error) {
	repo, root, err := c.openRepo(repoPath)
	if err != nil {
		return nil, "", err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, "", libgit.Errorf("failed to get worktree for repository '%s': %w", root, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, "", libgit.Errorf("failed to get git status for repository '%s': %w", root, err)
	}

	var out []string
	for path, fileStatus := range status {
		if err := ctx.Err(); err != nil {
			return nil, "", libgit.Errorf("listing changes in '%s': %w", root, err)
		}
		if fileStatus.Staging == git.Untracked && fileStatus.Worktree == git.Untracked {
			continue
		}
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		c.logger.Debug("Found changed file", slog.String("path", path),
			slog.String("status", fmt.Sprintf("%c%c", fileStatus.Staging, fileStatus.Worktree)))
		out = append(out, path)
	}
	return out, root, nil
}

// changesSince lists files that differ between ref and HEAD, deleted files included.
func (c *GoGitClient) changesSince(ctx context.Context, repoPath, ref string) ([]string, string, error) {
	repo, root, err := c.openRepo(repoPath)
	if err != nil {
		return nil, "", err
	}

	headRef, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			c.logger.Warn("HEAD reference not found, repository might be empty", slog.String("repo", root))
			return nil, root, nil
		}
		return nil, "", libgit.Errorf("failed to get HEAD reference for repository '%s': %w", root, err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, "", libgit.Errorf("failed to get HEAD commit object for repository '%s': %w", root, err)
	}

	sinceHash, err := c.resolveRevision(repo, ref)
	if err != nil {
		return nil, "", err
	}
	sinceCommit, err := repo.CommitObject(*sinceHash)
	if err != nil {
		return nil, "", libgit.Errorf("failed to get commit object for reference '%s': %w", ref, err)
	}

	patch, err := sinceCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return nil, "", libgit.Errorf("failed to generate patch between '%s' and HEAD in '%s': %w", ref, root, err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, filePatch := range patch.FilePatches() {
		from, to := filePatch.Files()
		var path string
		switch {
		case to != nil:
			path = to.Path()
		case from != nil:
			path = from.Path()
		default:
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out, root, nil
}

package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/internal/testutil"
	libgit "github.com/stackvity/blade-formatter/pkg/formatter/git"
)

type testRepo struct {
	t        *testing.T
	root     string
	worktree *git.Worktree
}

// newTestRepo creates a repository with two commits:
// C1 adds README.md, C2 adds views/home.blade.php.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	r := &testRepo{t: t, root: root, worktree: wt}
	r.write("README.md", "# readme\n")
	r.commit("C1", "README.md")
	r.write("views/home.blade.php", "<p>{{ $a }}</p>\n")
	r.commit("C2", "views/home.blade.php")
	return r
}

func (r *testRepo) write(rel, content string) {
	r.t.Helper()
	testutil.WriteFile(r.t, filepath.Join(r.root, rel), content)
}

func (r *testRepo) commit(msg string, paths ...string) {
	r.t.Helper()
	for _, p := range paths {
		_, err := r.worktree.Add(p)
		require.NoError(r.t, err)
	}
	_, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
}

func (r *testRepo) abs(rel ...string) []string {
	out := make([]string, len(rel))
	for i, p := range rel {
		out[i] = filepath.Join(r.root, filepath.FromSlash(p))
	}
	return out
}

func TestGoGitClient_ChangedFiles(t *testing.T) {
	handler, _ := testutil.NewTestLogger()
	client := NewGoGitClient(handler)

	testCases := []struct {
		name     string
		mode     string
		ref      string
		setup    func(r *testRepo)
		expected []string
	}{
		{
			name: "DiffOnly staged and unstaged",
			mode: libgit.ModeDiffOnly,
			setup: func(r *testRepo) {
				r.write("views/home.blade.php", "<p>{{$a}}</p>\n")
				r.write("views/new.blade.php", "@if($x)\n@endif\n")
				_, err := r.worktree.Add("views/new.blade.php")
				require.NoError(r.t, err)
				r.write("untracked.blade.php", "x")
			},
			expected: []string{"views/home.blade.php", "views/new.blade.php"},
		},
		{
			name: "DiffOnly staged delete",
			mode: libgit.ModeDiffOnly,
			setup: func(r *testRepo) {
				_, err := r.worktree.Remove("README.md")
				require.NoError(r.t, err)
			},
			expected: []string{"README.md"},
		},
		{
			name:     "DiffOnly clean tree",
			mode:     libgit.ModeDiffOnly,
			setup:    func(r *testRepo) {},
			expected: []string{},
		},
		{
			name:     "Since parent commit",
			mode:     libgit.ModeSince,
			ref:      "HEAD~1",
			setup:    func(r *testRepo) {},
			expected: []string{"views/home.blade.php"},
		},
		{
			name: "Since with deletion",
			mode: libgit.ModeSince,
			ref:  "HEAD~1",
			setup: func(r *testRepo) {
				_, err := r.worktree.Remove("views/home.blade.php")
				require.NoError(r.t, err)
				r.write("views/other.blade.php", "<div></div>\n")
				r.commit("C3", "views/other.blade.php")
			},
			expected: []string{"views/home.blade.php", "views/other.blade.php"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRepo(t)
			tc.setup(r)

			files, err := client.ChangedFiles(context.Background(), r.root, tc.mode, tc.ref)
			require.NoError(t, err)
			if len(tc.expected) == 0 {
				assert.Empty(t, files)
				return
			}
			assert.ElementsMatch(t, r.abs(tc.expected...), files)
		})
	}
}

func TestGoGitClient_ChangedFilesFromSubdirectory(t *testing.T) {
	r := newTestRepo(t)
	r.write("views/home.blade.php", "changed\n")

	client := NewGoGitClient(nil)
	files, err := client.ChangedFiles(context.Background(), filepath.Join(r.root, "views"), libgit.ModeDiffOnly, "")
	require.NoError(t, err)
	assert.Equal(t, r.abs("views/home.blade.php"), files)
}

func TestGoGitClient_Errors(t *testing.T) {
	client := NewGoGitClient(nil)
	ctx := context.Background()

	testCases := []struct {
		name     string
		path     func(t *testing.T) string
		mode     string
		ref      string
		contains string
	}{
		{
			name:     "Invalid reference",
			path:     func(t *testing.T) string { return newTestRepo(t).root },
			mode:     libgit.ModeSince,
			ref:      "no-such-ref",
			contains: "reference 'no-such-ref'",
		},
		{
			name:     "Empty reference",
			path:     func(t *testing.T) string { return newTestRepo(t).root },
			mode:     libgit.ModeSince,
			contains: "requires a non-empty reference",
		},
		{
			name:     "Unsupported mode",
			path:     func(t *testing.T) string { return newTestRepo(t).root },
			mode:     "bad-mode",
			contains: "unsupported git diff mode",
		},
		{
			name: "Not a repository",
			path: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0o755))
				return dir
			},
			mode:     libgit.ModeDiffOnly,
			contains: "repository not found",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			files, err := client.ChangedFiles(ctx, tc.path(t), tc.mode, tc.ref)
			require.Error(t, err)
			assert.Nil(t, files)
			assert.ErrorIs(t, err, libgit.ErrGitOperation)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

package git

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
)

// ChangedFiles returns the files below srcRoot that differ from HEAD in the
// index or the working tree, including untracked ones. Deleted files are left
// out. Paths are relative to srcRoot and sorted.
func ChangedFiles(srcRoot string) ([]string, error) {
	root, err := realpath(srcRoot)
	if err != nil {
		return nil, ClassifyGitError(err, "resolve", srcRoot)
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, ClassifyGitError(err, "open", srcRoot)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, ClassifyGitError(err, "worktree", srcRoot)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, ClassifyGitError(err, "status", srcRoot)
	}
	repoRoot, err := realpath(wt.Filesystem.Root())
	if err != nil {
		return nil, ClassifyGitError(err, "resolve", wt.Filesystem.Root())
	}

	var out []string
	for p, st := range status {
		if !changed(st) {
			continue
		}
		rel, err := filepath.Rel(root, filepath.Join(repoRoot, filepath.FromSlash(p)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, fsys.Clean(rel))
	}
	slices.Sort(out)
	return out, nil
}

func changed(st *git.FileStatus) bool {
	if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree != git.Untracked) {
		return false
	}
	return st.Worktree != git.Unmodified || st.Staging != git.Unmodified
}

func realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return resolved, nil
}

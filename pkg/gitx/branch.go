package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Branches returns local branch names, or the branches known for a remote
// when remote is non-empty.
func (r *Repo) Branches(remote string) ([]string, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "list references in %s", r.dir)
	}

	prefix := "refs/heads/"
	if remote != "" {
		prefix = "refs/remotes/" + remote + "/"
	}

	var branches []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if strings.HasPrefix(name, prefix) {
			short := strings.TrimPrefix(name, prefix)
			if short != "HEAD" {
				branches = append(branches, short)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "iterate references in %s", r.dir)
	}
	sort.Strings(branches)
	return branches, nil
}

// Remotes returns remote names mapped to their first URL.
func (r *Repo) Remotes() (map[string]string, error) {
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "list remotes in %s", r.dir)
	}
	out := make(map[string]string, len(remotes))
	for _, rem := range remotes {
		cfg := rem.Config()
		if len(cfg.URLs) > 0 {
			out[cfg.Name] = cfg.URLs[0]
		}
	}
	return out, nil
}

// Checkout switches the working tree to branch. With canCreate, a missing
// local branch is created, from the remote-tracking ref when the remote has
// it and from the current HEAD otherwise.
func (r *Repo) Checkout(branch, remote string, canCreate bool) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "open worktree in %s", r.dir)
	}

	local := plumbing.NewBranchReferenceName(branch)
	if _, err := r.repo.Reference(local, true); err == nil {
		err := wt.Checkout(&git.CheckoutOptions{Branch: local})
		if err != nil {
			return errors.Wrap(errors.ErrCodeGit, err, "checkout %s in %s", branch, r.dir)
		}
		return nil
	}

	if !canCreate {
		return errors.New(errors.ErrCodeGit, "branch %s does not exist in %s", branch, r.dir)
	}

	opts := &git.CheckoutOptions{Branch: local, Create: true}
	if remote != "" {
		remoteRef := plumbing.NewRemoteReferenceName(remote, branch)
		if ref, err := r.repo.Reference(remoteRef, true); err == nil {
			opts.Hash = ref.Hash()
		}
	}
	if err := wt.Checkout(opts); err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "create branch %s in %s", branch, r.dir)
	}
	return nil
}

// Merge merges the given ref into the current branch. Merging runs through
// the git binary because go-git only supports fast-forward merges; conflict
// output is detected and surfaced as a MergeConflictError with remediation
// steps.
func (r *Repo) Merge(ctx context.Context, from string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", r.dir, "merge", "--no-edit", from)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	text := string(out)
	if strings.Contains(text, "CONFLICT") || strings.Contains(text, "Automatic merge failed") {
		return &errors.MergeConflictError{Directory: r.dir, From: from, Output: text}
	}
	return errors.Wrap(errors.ErrCodeGit, err, "merge %s in %s: %s", from, r.dir, strings.TrimSpace(text))
}

// CommitAll stages everything in the working tree and commits it.
func (r *Repo) CommitAll(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGit, err, "open worktree in %s", r.dir)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", errors.Wrap(errors.ErrCodeGit, err, "stage changes in %s", r.dir)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGit, err, "commit in %s", r.dir)
	}
	return hash.String(), nil
}

// PushTag pushes a single tag to the remote.
func (r *Repo) PushTag(ctx context.Context, remote, tag string) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag))
	return r.push(ctx, remote, spec)
}

// PushBranch pushes a branch to the remote.
func (r *Repo) PushBranch(ctx context.Context, remote, branch string) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	return r.push(ctx, remote, spec)
}

func (r *Repo) push(ctx context.Context, remote string, spec gitconfig.RefSpec) error {
	if remote == "" {
		remote = "origin"
	}
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{spec},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errors.Wrap(errors.ErrCodeGit, err, "push %s to %s from %s", spec, remote, r.dir)
	}
	return nil
}

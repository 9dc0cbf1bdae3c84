// Package gitx wraps go-git with the repository operations the release
// pipeline needs: tag and branch management, revision-range logs, and reading
// manifest content at historical revisions.
//
// Operations are synchronous and single-process; ordering guarantees (tag the
// child before stabilizing the parent constraint) are the caller's.
package gitx

import (
	"context"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Commit is one entry from a revision-range log.
type Commit struct {
	Hash       string
	ShortHash  string
	Subject    string
	AuthorName string
	AuthorDate time.Time
}

// Repo is a handle to a local git working tree.
type Repo struct {
	dir  string
	repo *git.Repository
}

// Open opens the repository containing dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "open repository at %s", dir)
	}
	return &Repo{dir: dir, repo: repo}, nil
}

// Dir returns the working tree directory.
func (r *Repo) Dir() string { return r.dir }

// HeadHash returns the full hash of the current HEAD commit.
func (r *Repo) HeadHash() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGit, err, "resolve HEAD in %s", r.dir)
	}
	return head.Hash().String(), nil
}

// CurrentBranch returns the short name of the checked-out branch, or empty
// when HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGit, err, "resolve HEAD in %s", r.dir)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// Tags returns all tag names in the repository, sorted lexically.
func (r *Repo) Tags() ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "list tags in %s", r.dir)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "iterate tags in %s", r.dir)
	}
	sort.Strings(tags)
	return tags, nil
}

// HasTag reports whether the named tag exists.
func (r *Repo) HasTag(name string) bool {
	_, err := r.repo.Reference(plumbing.NewTagReferenceName(name), true)
	return err == nil
}

// HeadTags returns the tags pointing at the current HEAD commit. Annotated
// tags are peeled to their target commit before comparison.
func (r *Repo) HeadTags() ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "resolve HEAD in %s", r.dir)
	}

	iter, err := r.repo.Tags()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "list tags in %s", r.dir)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash, err := r.peelToCommit(ref.Hash())
		if err != nil {
			return nil // skip unpeelable refs
		}
		if hash == head.Hash() {
			tags = append(tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "iterate tags in %s", r.dir)
	}
	sort.Strings(tags)
	return tags, nil
}

// CreateTag creates an annotated tag at HEAD.
func (r *Repo) CreateTag(ctx context.Context, name, message string) error {
	if r.HasTag(name) {
		return errors.New(errors.ErrCodeGit, "tag %s already exists in %s", name, r.dir)
	}
	head, err := r.repo.Head()
	if err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "resolve HEAD in %s", r.dir)
	}
	_, err = r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: message,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "create tag %s in %s", name, r.dir)
	}
	return nil
}

// FileAtRevision reads a file's content as it was at the given revision
// (tag name, branch name, or commit hash).
func (r *Repo) FileAtRevision(rev, path string) ([]byte, error) {
	commit, err := r.commitAt(rev)
	if err != nil {
		return nil, err
	}
	file, err := commit.File(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "read %s at %s in %s", path, rev, r.dir)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "read %s at %s in %s", path, rev, r.dir)
	}
	return []byte(contents), nil
}

// LogRange returns the commits reachable from `to` but not from `from`,
// newest first. An empty `from` yields the full history of `to`; an empty
// `to` defaults to HEAD.
func (r *Repo) LogRange(from, to string) ([]Commit, error) {
	if to == "" {
		to = "HEAD"
	}
	toCommit, err := r.commitAt(to)
	if err != nil {
		return nil, err
	}

	exclude := map[plumbing.Hash]bool{}
	if from != "" {
		fromCommit, err := r.commitAt(from)
		if err != nil {
			return nil, err
		}
		iter := object.NewCommitPreorderIter(fromCommit, nil, nil)
		err = iter.ForEach(func(c *object.Commit) error {
			exclude[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGit, err, "walk history of %s in %s", from, r.dir)
		}
	}

	var commits []Commit
	iter := object.NewCommitPreorderIter(toCommit, exclude, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:       c.Hash.String(),
			ShortHash:  c.Hash.String()[:7],
			Subject:    firstLine(c.Message),
			AuthorName: c.Author.Name,
			AuthorDate: c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "walk range %s..%s in %s", from, to, r.dir)
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[j].AuthorDate.Before(commits[i].AuthorDate)
	})
	return commits, nil
}

// HasDiff reports whether the working HEAD tree differs from the tree at rev.
func (r *Repo) HasDiff(rev string) (bool, error) {
	headCommit, err := r.commitAt("HEAD")
	if err != nil {
		return false, err
	}
	other, err := r.commitAt(rev)
	if err != nil {
		return false, err
	}
	return headCommit.TreeHash != other.TreeHash, nil
}

func (r *Repo) commitAt(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "resolve revision %s in %s", rev, r.dir)
	}
	commitHash, err := r.peelToCommit(*hash)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(commitHash)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGit, err, "load commit %s in %s", rev, r.dir)
	}
	return commit, nil
}

// peelToCommit resolves annotated tag objects down to their commit.
func (r *Repo) peelToCommit(hash plumbing.Hash) (plumbing.Hash, error) {
	if tag, err := r.repo.TagObject(hash); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, errors.Wrap(errors.ErrCodeGit, err, "peel tag %s", hash)
		}
		return commit.Hash, nil
	}
	return hash, nil
}

func (r *Repo) signature() *object.Signature {
	sig := &object.Signature{Name: "roundup", Email: "roundup@localhost", When: time.Now()}
	if cfg, err := r.repo.ConfigScoped(gitconfig.SystemScope); err == nil && cfg.User.Name != "" {
		sig.Name = cfg.User.Name
		sig.Email = cfg.User.Email
	}
	return sig
}

func firstLine(message string) string {
	for i, c := range message {
		if c == '\n' {
			return message[:i]
		}
	}
	return message
}

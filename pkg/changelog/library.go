package changelog

import (
	"github.com/pasturelabs/roundup/pkg/composer"
	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/release"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// DefaultDepth bounds historical reconstruction. Malformed histories can
// reference themselves in cycles of old manifests; six levels is deeper than
// any real dependency tree here.
const DefaultDepth = 6

// Library mirrors one release-plan node for changelog purposes, carrying the
// historical baseline version the changelog diffs from. The baseline can
// differ from the plan's prior version: it is reconstructed from the
// manifest as it existed at the parent's own baseline tag, because the
// dependency wiring may have changed since.
type Library struct {
	release  *release.LibraryRelease
	from     *semver.Version
	children []*Library
}

// Options controls tree reconstruction.
type Options struct {
	// Depth bounds recursion; 0 selects DefaultDepth.
	Depth int

	// IncludeUpgradeOnly also walks into subtrees the config marks
	// upgrade-only, which are normally skipped since their changes belong
	// to someone else's release.
	IncludeUpgradeOnly bool
}

// Build reconstructs the changelog tree for a release plan, using each
// node's plan prior version as the root baseline.
func Build(rel *release.LibraryRelease, opts Options) (*Library, error) {
	depth := opts.Depth
	if depth == 0 {
		depth = DefaultDepth
	}
	return build(rel, rel.PriorVersion, depth, opts.IncludeUpgradeOnly)
}

func build(rel *release.LibraryRelease, from *semver.Version, depth int, includeUpgradeOnly bool) (*Library, error) {
	node := &Library{release: rel, from: from}
	if depth <= 1 {
		return node, nil
	}
	for _, childRel := range rel.Items() {
		upgradeOnly, err := rel.Library().IsChildUpgradeOnly(childRel.Name())
		if err != nil {
			return nil, err
		}
		if upgradeOnly && !includeUpgradeOnly {
			continue
		}
		childFrom, err := historicalVersion(rel, from, childRel)
		if err != nil {
			return nil, err
		}
		child, err := build(childRel, childFrom, depth-1, includeUpgradeOnly)
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, child)
	}
	return node, nil
}

// historicalVersion finds the version the child was at when the parent's
// baseline was released: the constraint the parent's manifest declared at
// that tag, resolved against the child's tag history, taking the oldest
// satisfying tag. A nil parent baseline (or a child absent from the old
// manifest) yields a nil baseline, meaning the child's full history is new.
func historicalVersion(parent *release.LibraryRelease, parentFrom *semver.Version, child *release.LibraryRelease) (*semver.Version, error) {
	if parentFrom == nil {
		return nil, nil
	}
	repo, err := parent.Library().Repo()
	if err != nil {
		return nil, err
	}
	data, err := repo.FileAtRevision(parentFrom.Tag(), composer.Filename)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLogic, err,
			"%s has no readable manifest at %s", parent.Name(), parentFrom.Tag())
	}
	manifest, err := composer.Parse(data)
	if err != nil {
		return nil, err
	}
	raw, ok := manifest.Require[child.Name()]
	if !ok {
		return nil, nil
	}
	from := *parentFrom
	constraint, err := semver.ParseConstraint(raw, &from)
	if err != nil {
		return nil, err
	}
	tags, err := child.Library().Tags()
	if err != nil {
		return nil, err
	}
	matched := constraint.FilterVersions(tags)
	if len(matched) == 0 {
		return nil, errors.New(errors.ErrCodeLogic,
			"no tag of %s satisfies the historical constraint %s declared by %s at %s",
			child.Name(), raw, parent.Name(), parentFrom.Tag())
	}
	semver.Sort(matched)
	oldest := matched[0]
	return &oldest, nil
}

// Name returns the library's composer name.
func (l *Library) Name() string { return l.release.Name() }

// Release returns the plan node this changelog entry covers.
func (l *Library) Release() *release.LibraryRelease { return l.release }

// From returns the baseline version, or nil when the whole history is in
// scope.
func (l *Library) From() *semver.Version { return l.from }

// Children returns the reconstructed child libraries.
func (l *Library) Children() []*Library { return l.children }

// All returns this node and every descendant depth-first.
func (l *Library) All() []*Library {
	out := []*Library{l}
	for _, child := range l.children {
		out = append(out, child.All()...)
	}
	return out
}

// Commits returns the changelog items for this library alone: the commit
// range from the baseline tag to the target tag, or to HEAD when the target
// has not been cut yet.
func (l *Library) Commits() ([]*Item, error) {
	repo, err := l.release.Library().Repo()
	if err != nil {
		return nil, err
	}
	from := ""
	if l.from != nil {
		from = l.from.Tag()
	}
	to := "HEAD"
	tagged, err := l.release.Library().HasTag(l.release.Version)
	if err != nil {
		return nil, err
	}
	if tagged {
		to = l.release.Version.Tag()
	}
	commits, err := repo.LogRange(from, to)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(commits))
	for _, commit := range commits {
		items = append(items, NewItem(l.Name(), commit))
	}
	return items, nil
}

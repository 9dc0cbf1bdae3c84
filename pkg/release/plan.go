// Package release builds, persists, and executes release plans: a tree of
// target versions for a project and its child libraries, resolved from the
// dependency constraints each manifest declares.
package release

import (
	"sort"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/project"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// LibraryRelease is one node of the release plan: a library paired with the
// version it will receive. Children are the library's own releasable
// dependencies, keyed by package name. A name appears at most once across the
// whole tree.
type LibraryRelease struct {
	library *project.Library
	name    string
	parent  *LibraryRelease

	// Version is the target version for this library.
	Version semver.Version

	// PriorVersion is the version this release follows, when it could be
	// inferred from the tag history. Used as the changelog baseline.
	PriorVersion *semver.Version

	// Branching is the branch strategy applied to this node during the
	// branch phase.
	Branching Branching

	items map[string]*LibraryRelease
}

// NewRelease creates a plan root for the given library and target version.
func NewRelease(lib *project.Library, version semver.Version) (*LibraryRelease, error) {
	name, err := lib.Name()
	if err != nil {
		return nil, err
	}
	return &LibraryRelease{
		library: lib,
		name:    name,
		Version: version,
		items:   map[string]*LibraryRelease{},
	}, nil
}

// Library returns the library this node releases.
func (r *LibraryRelease) Library() *project.Library { return r.library }

// Name returns the composer package name of this node's library.
func (r *LibraryRelease) Name() string { return r.name }

// Parent returns the node this release hangs under, nil for the root.
func (r *LibraryRelease) Parent() *LibraryRelease { return r.parent }

// Root walks up to the top of the plan tree.
func (r *LibraryRelease) Root() *LibraryRelease {
	node := r
	for node.parent != nil {
		node = node.parent
	}
	return node
}

// Depth is the distance from the plan root, 0 for the root itself.
func (r *LibraryRelease) Depth() int {
	depth := 0
	for node := r.parent; node != nil; node = node.parent {
		depth++
	}
	return depth
}

// IsNewRelease reports whether this node's version does not yet exist as a
// tag, meaning the publish phase will cut it. Computed from the repository
// rather than stored, so a re-run after a partial publish sees already-tagged
// nodes as existing releases and skips them.
func (r *LibraryRelease) IsNewRelease() (bool, error) {
	exists, err := r.library.HasTag(r.Version)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// AddItem attaches a child release. The child's library name must be unique
// across the entire tree; a second release for the same name is an error.
func (r *LibraryRelease) AddItem(child *LibraryRelease) error {
	if existing := r.Root().FindItem(child.name); existing != nil {
		return errors.New(errors.ErrCodeDuplicateRelease,
			"release plan already contains %s", child.name)
	}
	child.parent = r
	r.items[child.name] = child
	return nil
}

// FindItem locates the node releasing the named library, searching this node
// and its whole subtree. Returns nil if absent.
func (r *LibraryRelease) FindItem(name string) *LibraryRelease {
	if r.name == name {
		return r
	}
	for _, child := range r.children() {
		if found := child.FindItem(name); found != nil {
			return found
		}
	}
	return nil
}

// RemoveItem detaches the direct child releasing the named library.
func (r *LibraryRelease) RemoveItem(name string) bool {
	child, ok := r.items[name]
	if !ok {
		return false
	}
	child.parent = nil
	delete(r.items, name)
	return true
}

// ClearItems discards the whole subtree below this node. Used when a review
// edit flips a node between new-release and existing-tag, which invalidates
// every child version derived from it.
func (r *LibraryRelease) ClearItems() {
	for name, child := range r.items {
		child.parent = nil
		delete(r.items, name)
	}
}

// Items returns the direct children sorted by name.
func (r *LibraryRelease) Items() []*LibraryRelease { return r.children() }

// AllItems returns this node and every descendant in depth-first order,
// children sorted by name at each level.
func (r *LibraryRelease) AllItems() []*LibraryRelease {
	out := []*LibraryRelease{r}
	for _, child := range r.children() {
		out = append(out, child.AllItems()...)
	}
	return out
}

// Walk visits this node and every descendant in depth-first preorder.
// Returns the first error from fn.
func (r *LibraryRelease) Walk(fn func(*LibraryRelease) error) error {
	if err := fn(r); err != nil {
		return err
	}
	for _, child := range r.children() {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// WalkUp visits every descendant before its parent (children first), which is
// the order publish and branch operations must run in.
func (r *LibraryRelease) WalkUp(fn func(*LibraryRelease) error) error {
	for _, child := range r.children() {
		if err := child.WalkUp(fn); err != nil {
			return err
		}
	}
	return fn(r)
}

func (r *LibraryRelease) children() []*LibraryRelease {
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*LibraryRelease, 0, len(names))
	for _, name := range names {
		out = append(out, r.items[name])
	}
	return out
}
